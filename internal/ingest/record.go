// Package ingest accepts streamed point-location records and buffers them for
// the density pipeline.
package ingest

import (
	"fmt"
	"strings"
	"time"
)

// Record is one point-location observation on the wire.
type Record struct {
	EntityID string    `json:"entity_id"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	TS       time.Time `json:"ts"`
	Source   string    `json:"source,omitempty"`
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.EntityID) == "" {
		return fmt.Errorf("entity_id is required")
	}
	if r.Lat < -90 || r.Lat > 90 {
		return fmt.Errorf("lat %v out of range [-90,90]", r.Lat)
	}
	if r.Lng < -180 || r.Lng > 180 {
		return fmt.Errorf("lng %v out of range [-180,180]", r.Lng)
	}
	if r.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
