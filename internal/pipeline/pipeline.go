// Package pipeline assembles the live data sources, runs the density
// transform over them, and serializes the result for HTTP responses.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	h3 "github.com/uber/h3-go/v4"

	"github.com/citygrid/hexdensity/internal/cache/densitycache"
	"github.com/citygrid/hexdensity/internal/dataset"
	"github.com/citygrid/hexdensity/internal/density"
	"github.com/citygrid/hexdensity/internal/hexgrid"
	"github.com/citygrid/hexdensity/internal/ingest"
	"github.com/citygrid/hexdensity/internal/observability"
)

// FeedFetcher is the GBFS source. Fetching never fails as a whole; bad feeds
// are skipped upstream.
type FeedFetcher interface {
	FreeBikeStatus(ctx context.Context, feeds []string) *dataset.Frame
}

type Pipeline struct {
	log   zerolog.Logger
	fetch FeedFetcher
	feeds []string

	buffer *ingest.Buffer      // optional streamed records
	cache  *densitycache.Store // optional response cache
	ttl    time.Duration

	idCol  string
	latCol string
	lngCol string

	boundaryFn func(h3.Cell) (hexgrid.Ring, error)
}

type Option func(*Pipeline)

func WithBuffer(b *ingest.Buffer) Option {
	return func(p *Pipeline) { p.buffer = b }
}

func WithCache(s *densitycache.Store, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.cache = s
		p.ttl = ttl
	}
}

func WithColumns(idCol, latCol, lngCol string) Option {
	return func(p *Pipeline) {
		p.idCol = idCol
		p.latCol = latCol
		p.lngCol = lngCol
	}
}

func WithBoundarySource(fn func(h3.Cell) (hexgrid.Ring, error)) Option {
	return func(p *Pipeline) { p.boundaryFn = fn }
}

func New(log zerolog.Logger, fetch FeedFetcher, feeds []string, opts ...Option) *Pipeline {
	p := &Pipeline{
		log:    log,
		fetch:  fetch,
		feeds:  feeds,
		idCol:  "bike_id",
		latCol: "lat",
		lngCol: "lon",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AggregateResponse is the JSON body of GET /density.
type AggregateResponse struct {
	Resolution ResolutionInfo `json:"resolution"`
	Cells      []CellCount    `json:"cells"`
}

type ResolutionInfo struct {
	Level        int     `json:"level"`
	AreaKm2      float64 `json:"area_km2"`
	AvgEdgeLenKm float64 `json:"avg_edge_len_km"`
}

type CellCount struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Count int     `json:"count"`
}

// checkMode rejects bad modes before the cache is consulted. Only aggregate
// results are ever cached, so a warm cache must not mask an argument error.
func checkMode(mode density.Mode) error {
	switch mode {
	case density.ModeAggregate:
		return nil
	case density.ModeExtrapolate:
		return density.ErrExtrapolateUnsupported
	default:
		return density.ErrInvalidMode
	}
}

// Aggregate runs the fit+transform pipeline over the current data and
// returns the serialized response. Results are served from the response
// cache when one is configured; cache failures degrade to recompute.
func (p *Pipeline) Aggregate(ctx context.Context, res int, mode density.Mode) ([]byte, error) {
	if err := checkMode(mode); err != nil {
		return nil, err
	}
	if body := p.cached(ctx, res, "aggregate"); body != nil {
		return body, nil
	}

	start := time.Now()
	frame := p.collect(ctx)

	tr, err := p.newTransform(frame).Fit(res)
	if err != nil {
		return nil, err
	}
	out, err := tr.Transform(mode)
	if err != nil {
		return nil, err
	}
	resolution, err := tr.Resolution()
	if err != nil {
		return nil, err
	}

	resp := AggregateResponse{
		Resolution: ResolutionInfo{
			Level:        resolution.Level,
			AreaKm2:      resolution.AreaKm2,
			AvgEdgeLenKm: resolution.AvgEdgeLenKm,
		},
		Cells: make([]CellCount, 0, out.Len()),
	}
	for i := 0; i < out.Len(); i++ {
		lat, err := out.Float(i, p.latCol)
		if err != nil {
			return nil, err
		}
		lng, err := out.Float(i, p.lngCol)
		if err != nil {
			return nil, err
		}
		cnt, err := out.Value(i, p.idCol)
		if err != nil {
			return nil, err
		}
		n, ok := cnt.(int)
		if !ok {
			return nil, fmt.Errorf("pipeline: count column holds %T", cnt)
		}
		resp.Cells = append(resp.Cells, CellCount{Lat: lat, Lng: lng, Count: n})
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate response: %w", err)
	}

	observability.ObserveTransform("aggregate", res, frame.Len(), time.Since(start).Seconds())
	p.store(ctx, res, "aggregate", body)
	return body, nil
}

// Plot runs the same aggregation and returns the choropleth map JSON.
func (p *Pipeline) Plot(ctx context.Context, res int, mode density.Mode) ([]byte, error) {
	if err := checkMode(mode); err != nil {
		return nil, err
	}
	if body := p.cached(ctx, res, "plot"); body != nil {
		return body, nil
	}

	start := time.Now()
	frame := p.collect(ctx)

	tr, err := p.newTransform(frame).Fit(res)
	if err != nil {
		return nil, err
	}
	m, err := tr.TransformPlot(mode)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal plot response: %w", err)
	}

	observability.ObserveTransform("plot", res, frame.Len(), time.Since(start).Seconds())
	p.store(ctx, res, "plot", body)
	return body, nil
}

func (p *Pipeline) newTransform(frame *dataset.Frame) *density.Transform {
	opts := []density.Option{
		density.WithLatColumn(p.latCol),
		density.WithLngColumn(p.lngCol),
	}
	if p.boundaryFn != nil {
		opts = append(opts, density.WithBoundarySource(p.boundaryFn))
	}
	return density.New(frame, p.idCol, opts...)
}

// collect merges the GBFS snapshot with any buffered streamed records,
// normalizing streamed rows to the configured column names.
func (p *Pipeline) collect(ctx context.Context) *dataset.Frame {
	frame := p.fetch.FreeBikeStatus(ctx, p.feeds)

	if p.buffer != nil {
		snap := p.buffer.Snapshot()
		for i := 0; i < snap.Len(); i++ {
			row := snap.Row(i)
			frame.Append(dataset.Row{
				p.idCol:  row["entity_id"],
				p.latCol: row["lat"],
				p.lngCol: row["lng"],
			})
		}
	}
	return frame
}

func (p *Pipeline) cached(ctx context.Context, res int, op string) []byte {
	if p.cache == nil {
		return nil
	}
	body, err := p.cache.Get(ctx, "gbfs", res, op, p.feeds)
	if err != nil {
		p.log.Warn().Err(err).Int("res", res).Str("op", op).Msg("cache read failed; recomputing")
		return nil
	}
	return body
}

func (p *Pipeline) store(ctx context.Context, res int, op string, body []byte) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Put(ctx, "gbfs", res, op, p.feeds, body, p.ttl); err != nil {
		p.log.Warn().Err(err).Int("res", res).Str("op", op).Msg("cache write failed")
	}
}
