package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/citygrid/hexdensity/internal/cache/densitycache"
	"github.com/citygrid/hexdensity/internal/cache/redisstore"
	"github.com/citygrid/hexdensity/internal/dataset"
	"github.com/citygrid/hexdensity/internal/density"
	"github.com/citygrid/hexdensity/internal/ingest"
)

type fakeFetcher struct {
	rows  []dataset.Row
	calls int
}

func (f *fakeFetcher) FreeBikeStatus(_ context.Context, _ []string) *dataset.Frame {
	f.calls++
	return dataset.New([]string{"bike_id", "lat", "lon"}, f.rows)
}

func bikeRows() []dataset.Row {
	return []dataset.Row{
		{"bike_id": "A", "lat": 34.05, "lon": -118.24},
		{"bike_id": "A", "lat": 34.05, "lon": -118.24},
		{"bike_id": "B", "lat": 34.05, "lon": -118.24},
	}
}

func TestAggregate_CountsDistinctEntities(t *testing.T) {
	f := &fakeFetcher{rows: bikeRows()}
	p := New(zerolog.Nop(), f, nil)

	body, err := p.Aggregate(context.Background(), 9, density.ModeAggregate)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	var resp AggregateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Resolution.Level != 9 || resp.Resolution.AreaKm2 != 0.1053325 {
		t.Fatalf("resolution=%+v", resp.Resolution)
	}
	if len(resp.Cells) != 1 {
		t.Fatalf("cells=%d want 1", len(resp.Cells))
	}
	if resp.Cells[0].Count != 2 {
		t.Fatalf("count=%d want 2", resp.Cells[0].Count)
	}
}

func TestAggregate_InvalidMode(t *testing.T) {
	p := New(zerolog.Nop(), &fakeFetcher{rows: bikeRows()}, nil)
	if _, err := p.Aggregate(context.Background(), 9, density.Mode("bogus")); !errors.Is(err, density.ErrInvalidMode) {
		t.Fatalf("err=%v want ErrInvalidMode", err)
	}
}

func TestAggregate_MergesBufferedRecords(t *testing.T) {
	buf := ingest.NewBuffer(10)
	buf.Add(ingest.Record{EntityID: "C", Lat: 40.7128, Lng: -74.0060, TS: time.Now()})

	f := &fakeFetcher{rows: bikeRows()}
	p := New(zerolog.Nop(), f, nil, WithBuffer(buf))

	body, err := p.Aggregate(context.Background(), 9, density.ModeAggregate)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	var resp AggregateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Cells) != 2 {
		t.Fatalf("cells=%d want 2 (one GBFS cell, one streamed cell)", len(resp.Cells))
	}
}

func TestAggregate_ResponseCacheSkipsRecompute(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	cli, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })

	f := &fakeFetcher{rows: bikeRows()}
	p := New(zerolog.Nop(), f, []string{"https://example.com/feed"},
		WithCache(densitycache.New(cli, time.Minute), time.Minute))

	b1, err := p.Aggregate(context.Background(), 9, density.ModeAggregate)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	b2, err := p.Aggregate(context.Background(), 9, density.ModeAggregate)
	if err != nil {
		t.Fatalf("Aggregate (cached): %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatalf("cached body differs")
	}
	if f.calls != 1 {
		t.Fatalf("fetch calls=%d want 1 (second served from cache)", f.calls)
	}
}

func TestAggregate_WarmCacheDoesNotMaskModeErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	cli, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })

	f := &fakeFetcher{rows: bikeRows()}
	p := New(zerolog.Nop(), f, []string{"https://example.com/feed"},
		WithCache(densitycache.New(cli, time.Minute), time.Minute))

	// warm the cache with a valid request
	if _, err := p.Aggregate(context.Background(), 9, density.ModeAggregate); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if _, err := p.Aggregate(context.Background(), 9, density.Mode("bogus")); !errors.Is(err, density.ErrInvalidMode) {
		t.Fatalf("Aggregate bogus mode err=%v want ErrInvalidMode", err)
	}
	if _, err := p.Aggregate(context.Background(), 9, density.ModeExtrapolate); !errors.Is(err, density.ErrExtrapolateUnsupported) {
		t.Fatalf("Aggregate extrapolate err=%v want ErrExtrapolateUnsupported", err)
	}
	if _, err := p.Plot(context.Background(), 9, density.Mode("bogus")); !errors.Is(err, density.ErrInvalidMode) {
		t.Fatalf("Plot bogus mode err=%v want ErrInvalidMode", err)
	}
	if _, err := p.Plot(context.Background(), 9, density.ModeExtrapolate); !errors.Is(err, density.ErrExtrapolateUnsupported) {
		t.Fatalf("Plot extrapolate err=%v want ErrExtrapolateUnsupported", err)
	}
}

func TestPlot_ReturnsChoroplethJSON(t *testing.T) {
	p := New(zerolog.Nop(), &fakeFetcher{rows: bikeRows()}, nil)

	body, err := p.Plot(context.Background(), 9, density.ModeAggregate)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	var out struct {
		Legend  string `json:"legend"`
		GeoJSON struct {
			Type     string            `json:"type"`
			Features []json.RawMessage `json:"features"`
		} `json:"geojson"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.GeoJSON.Type != "FeatureCollection" {
		t.Fatalf("type=%q", out.GeoJSON.Type)
	}
	if len(out.GeoJSON.Features) != 1 {
		t.Fatalf("features=%d want 1", len(out.GeoJSON.Features))
	}
	if out.Legend != "Unique count of: bike_id" {
		t.Fatalf("legend=%q", out.Legend)
	}
}

func TestAggregate_EmptySources(t *testing.T) {
	p := New(zerolog.Nop(), &fakeFetcher{}, nil)
	body, err := p.Aggregate(context.Background(), 9, density.ModeAggregate)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	var resp AggregateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Cells) != 0 {
		t.Fatalf("cells=%d want 0", len(resp.Cells))
	}
}
