// Package keys builds deterministic Redis keys for cached density responses.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DensityKey identifies one aggregation result: the data source name, the
// grid resolution, the query op (aggregate vs plot), and the ordered feed
// list. The feed list is folded into an xxhash fingerprint so arbitrarily
// long URL sets produce bounded keys; a short sanitized prefix of the first
// feed is kept for operator readability.
func DensityKey(source string, res int, op string, feeds []string) string {
	srcNorm := sanitize(strings.TrimSpace(source))
	opNorm := sanitize(strings.TrimSpace(op))

	joined := strings.Join(feeds, "\x00")
	sum := xxhash.Sum64String(joined)

	hint := ""
	if len(feeds) > 0 {
		hint = sanitize(feeds[0])
		const maxHintLen = 48
		if len(hint) > maxHintLen {
			hint = hint[:maxHintLen]
		}
	}

	return fmt.Sprintf("density:%s:%d:%s:%s:f=%016x", srcNorm, res, opNorm, hint, sum)
}

// sanitize keeps keys to a safe alphabet; runs of replacement characters
// collapse to one.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
