package keys

import (
	"regexp"
	"testing"
)

var feeds = []string{
	"https://mds.bird.co/gbfs/v2/public/los-angeles/free_bike_status.json",
	"https://gbfs.spin.pm/api/gbfs/v2_2/los_angeles/free_bike_status",
}

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := DensityKey("gbfs", 9, "aggregate", feeds)
	k2 := DensityKey("gbfs", 9, "aggregate", feeds)
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestDifference_ResolutionOpAndFeedsMatter(t *testing.T) {
	base := DensityKey("gbfs", 9, "aggregate", feeds)
	if k := DensityKey("gbfs", 8, "aggregate", feeds); k == base {
		t.Fatalf("resolution must change the key")
	}
	if k := DensityKey("gbfs", 9, "plot", feeds); k == base {
		t.Fatalf("op must change the key")
	}
	if k := DensityKey("gbfs", 9, "aggregate", feeds[:1]); k == base {
		t.Fatalf("feed list must change the key")
	}
	reversed := []string{feeds[1], feeds[0]}
	if k := DensityKey("gbfs", 9, "aggregate", reversed); k == base {
		t.Fatalf("feed order must change the key")
	}
}

func TestSanitization_KeyUsesSafeAlphabet(t *testing.T) {
	k := DensityKey("my source/ü", 9, "aggregate", []string{"http://example.com/a b?c=d"})
	if !regexp.MustCompile(`^[A-Za-z0-9:_=\-\.]+$`).MatchString(k) {
		t.Fatalf("key contains disallowed characters: %s", k)
	}
}

func TestHashSuffix_Present(t *testing.T) {
	k := DensityKey("gbfs", 9, "aggregate", feeds)
	if !regexp.MustCompile(`:f=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing fingerprint suffix: %s", k)
	}
}
