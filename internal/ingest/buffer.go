package ingest

import (
	"sync"

	"github.com/citygrid/hexdensity/internal/dataset"
)

// Buffer is a bounded in-memory record store. The Kafka consumer appends,
// the server snapshots. When full, the oldest records are dropped first.
type Buffer struct {
	mu   sync.Mutex
	recs []Record
	cap  int
}

const DefaultCapacity = 100_000

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{cap: capacity}
}

func (b *Buffer) Add(recs ...Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs = append(b.recs, recs...)
	if over := len(b.recs) - b.cap; over > 0 {
		b.recs = b.recs[over:]
	}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.recs)
}

// Snapshot materializes the buffered records as a frame with the default
// id/coordinate columns.
func (b *Buffer) Snapshot() *dataset.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows := make([]dataset.Row, 0, len(b.recs))
	for _, r := range b.recs {
		rows = append(rows, dataset.Row{
			"entity_id": r.EntityID,
			"lat":       r.Lat,
			"lng":       r.Lng,
			"ts":        r.TS,
			"source":    r.Source,
		})
	}
	return dataset.New([]string{"entity_id", "lat", "lng", "ts", "source"}, rows)
}
