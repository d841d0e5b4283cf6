package ingest

import (
	"testing"
	"time"
)

func validRecord() Record {
	return Record{
		EntityID: "scooter-1",
		Lat:      34.05,
		Lng:      -118.24,
		TS:       time.Now().UTC(),
		Source:   "fleet-a",
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{"valid", func(*Record) {}, false},
		{"missing-entity", func(r *Record) { r.EntityID = " " }, true},
		{"lat-too-high", func(r *Record) { r.Lat = 91 }, true},
		{"lat-too-low", func(r *Record) { r.Lat = -90.5 }, true},
		{"lng-too-high", func(r *Record) { r.Lng = 181 }, true},
		{"zero-ts", func(r *Record) { r.TS = time.Time{} }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := validRecord()
			tc.mutate(&r)
			err := r.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuffer_AddAndSnapshot(t *testing.T) {
	b := NewBuffer(10)
	b.Add(validRecord(), validRecord())

	f := b.Snapshot()
	if f.Len() != 2 {
		t.Fatalf("len=%d want 2", f.Len())
	}
	lat, err := f.Float(0, "lat")
	if err != nil {
		t.Fatalf("Float: %v", err)
	}
	if lat != 34.05 {
		t.Fatalf("lat=%v want 34.05", lat)
	}
}

func TestBuffer_DropsOldestWhenFull(t *testing.T) {
	b := NewBuffer(2)
	r1 := validRecord()
	r1.EntityID = "first"
	r2 := validRecord()
	r2.EntityID = "second"
	r3 := validRecord()
	r3.EntityID = "third"

	b.Add(r1)
	b.Add(r2)
	b.Add(r3)

	if b.Len() != 2 {
		t.Fatalf("len=%d want 2", b.Len())
	}
	f := b.Snapshot()
	id, err := f.Value(0, "entity_id")
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if id != "second" {
		t.Fatalf("oldest surviving record=%v want second", id)
	}
}

func TestBuffer_SnapshotIsDetached(t *testing.T) {
	b := NewBuffer(10)
	b.Add(validRecord())

	f := b.Snapshot()
	b.Add(validRecord())

	if f.Len() != 1 {
		t.Fatalf("snapshot grew with buffer: len=%d want 1", f.Len())
	}
}
