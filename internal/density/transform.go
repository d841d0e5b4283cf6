// Package density turns raw point-location records into privacy-preserving
// per-cell density counts on the H3 grid.
//
// A Transform is bound to one dataset and one resolution: construct it, call
// Fit once, then query it with Transform or TransformPlot. Fitting quantizes
// every record's coordinates to the centroid of its containing hex cell, so
// individual point locations become indistinguishable within a cell.
package density

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	h3 "github.com/uber/h3-go/v4"

	"github.com/citygrid/hexdensity/internal/choropleth"
	"github.com/citygrid/hexdensity/internal/dataset"
	"github.com/citygrid/hexdensity/internal/hexgrid"
)

// Mode selects the behavior of the fit-gated query methods.
type Mode string

const (
	ModeAggregate Mode = "aggregate"

	// ModeExtrapolate is declared for future densification into unsampled
	// neighboring cells. It is accepted by validation but has no behavior.
	ModeExtrapolate Mode = "extrapolate"
)

var (
	ErrNotFitted   = errors.New("density: method requires Fit to be called first")
	ErrAlreadyFit  = errors.New("density: transform is already fit; build a new one to change resolution")
	ErrInvalidMode = fmt.Errorf("density: invalid mode, must be one of: %q, %q", ModeAggregate, ModeExtrapolate)

	ErrExtrapolateUnsupported = errors.New(`density: mode "extrapolate" is not implemented`)
)

const (
	DefaultLatColumn = "lat"
	DefaultLngColumn = "lng"
)

type Transform struct {
	frame  *dataset.Frame
	idCol  string
	latCol string
	lngCol string

	// populated by Fit
	cells      []h3.Cell                // per-row cell assignment
	rawCoords  [][2]float64             // original (lat,lng) per row, kept so fitting is not destructive
	boundaries map[h3.Cell]hexgrid.Ring // polygon cache, one entry per distinct cell
	boundaryFn func(h3.Cell) (hexgrid.Ring, error)
	res        hexgrid.Resolution
	isFit      bool
}

type Option func(*Transform)

func WithLatColumn(col string) Option {
	return func(t *Transform) { t.latCol = col }
}

func WithLngColumn(col string) Option {
	return func(t *Transform) { t.lngCol = col }
}

// WithBoundarySource replaces the boundary computation, letting callers share
// a memoized lookup across transforms.
func WithBoundarySource(fn func(h3.Cell) (hexgrid.Ring, error)) Option {
	return func(t *Transform) {
		if fn != nil {
			t.boundaryFn = fn
		}
	}
}

// New builds an un-fit transform over a copy of frame. The caller's frame is
// never modified. Column existence is not validated here; a frame lacking the
// configured columns fails during Fit.
func New(frame *dataset.Frame, idCol string, opts ...Option) *Transform {
	t := &Transform{
		frame:      frame.Copy(),
		idCol:      idCol,
		latCol:     DefaultLatColumn,
		lngCol:     DefaultLngColumn,
		boundaries: make(map[h3.Cell]hexgrid.Ring),
		boundaryFn: hexgrid.Boundary,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Fit assigns every record to its H3 cell at the given resolution, replaces
// the record's coordinates with the cell centroid, and caches each distinct
// cell's boundary polygon. Fit may only be called once per transform:
// re-fitting atop already-quantized coordinates would assign cells to
// centroids instead of the original points.
func (t *Transform) Fit(resolution int) (*Transform, error) {
	if t.isFit {
		return nil, ErrAlreadyFit
	}
	res, err := hexgrid.FromLevel(resolution)
	if err != nil {
		return nil, err
	}

	n := t.frame.Len()
	cells := make([]h3.Cell, n)
	raw := make([][2]float64, n)
	centroids := make([][2]float64, n)
	boundaries := make(map[h3.Cell]hexgrid.Ring)

	for i := 0; i < n; i++ {
		lat, err := t.frame.Float(i, t.latCol)
		if err != nil {
			return nil, fmt.Errorf("fit: %w", err)
		}
		lng, err := t.frame.Float(i, t.lngCol)
		if err != nil {
			return nil, fmt.Errorf("fit: %w", err)
		}
		raw[i] = [2]float64{lat, lng}

		cell, err := hexgrid.CellForPoint(lat, lng, resolution)
		if err != nil {
			return nil, fmt.Errorf("fit row %d: %w", i, err)
		}
		cells[i] = cell

		cLat, cLng, err := hexgrid.Centroid(cell)
		if err != nil {
			return nil, fmt.Errorf("fit row %d: %w", i, err)
		}
		centroids[i] = [2]float64{cLat, cLng}

		if _, ok := boundaries[cell]; !ok {
			ring, err := t.boundaryFn(cell)
			if err != nil {
				return nil, fmt.Errorf("fit row %d: %w", i, err)
			}
			boundaries[cell] = ring
		}
	}

	// commit only after every row mapped; a failed fit leaves the frame
	// untouched and the transform un-fit, so a retry sees raw coordinates
	for i := 0; i < n; i++ {
		row := t.frame.Row(i)
		row[t.latCol] = centroids[i][0]
		row[t.lngCol] = centroids[i][1]
	}
	t.cells = cells
	t.rawCoords = raw
	t.boundaries = boundaries
	t.res = res
	t.isFit = true
	return t, nil
}

// Resolution returns the fitted resolution descriptor.
func (t *Transform) Resolution() (hexgrid.Resolution, error) {
	if !t.isFit {
		return hexgrid.Resolution{}, ErrNotFitted
	}
	return t.res, nil
}

// Fitted returns a copy of the working frame after quantization. Each row's
// coordinates equal the centroid of its assigned cell.
func (t *Transform) Fitted() (*dataset.Frame, error) {
	if !t.isFit {
		return nil, ErrNotFitted
	}
	return t.frame.Copy(), nil
}

// RawCoordinate returns the pre-quantization (lat,lng) of row i. The working
// frame only carries centroids after Fit; the originals live here.
func (t *Transform) RawCoordinate(i int) (float64, float64, error) {
	if !t.isFit {
		return 0, 0, ErrNotFitted
	}
	if i < 0 || i >= len(t.rawCoords) {
		return 0, 0, fmt.Errorf("density: row %d out of range", i)
	}
	return t.rawCoords[i][0], t.rawCoords[i][1], nil
}

// requireFit is the shared guard for every fit-gated method: precondition
// first, then mode validation.
func (t *Transform) requireFit(mode Mode) error {
	if !t.isFit {
		return ErrNotFitted
	}
	switch mode {
	case ModeAggregate, ModeExtrapolate:
		return nil
	default:
		return ErrInvalidMode
	}
}

// Transform aggregates the fitted records into one row per occupied cell with
// columns {latCol, lngCol, idCol}, where idCol holds the count of distinct
// entity ids in that cell. Cells with no records are absent. Output is sorted
// by latitude then longitude.
func (t *Transform) Transform(mode Mode) (*dataset.Frame, error) {
	if err := t.requireFit(mode); err != nil {
		return nil, err
	}
	if mode == ModeExtrapolate {
		return nil, ErrExtrapolateUnsupported
	}

	groups, err := t.aggregate()
	if err != nil {
		return nil, err
	}

	out := dataset.New([]string{t.latCol, t.lngCol, t.idCol}, nil)
	for _, g := range groups {
		out.Append(dataset.Row{
			t.latCol: g.lat,
			t.lngCol: g.lng,
			t.idCol:  len(g.ids),
		})
	}
	return out, nil
}

// TransformPlot performs the same aggregation as Transform, restores each
// cell's boundary polygon from the cache, and hands the result to the
// choropleth renderer. The returned map is opaque to this package.
func (t *Transform) TransformPlot(mode Mode) (*choropleth.Map, error) {
	if err := t.requireFit(mode); err != nil {
		return nil, err
	}
	if mode == ModeExtrapolate {
		return nil, ErrExtrapolateUnsupported
	}

	groups, err := t.aggregate()
	if err != nil {
		return nil, err
	}

	cells := make([]choropleth.Cell, 0, len(groups))
	var sumLat, sumLng float64
	for _, g := range groups {
		ring, ok := t.boundaries[g.cell]
		if !ok {
			return nil, fmt.Errorf("density: no cached boundary for cell %s", g.cell)
		}
		cells = append(cells, choropleth.Cell{
			Lat:      g.lat,
			Lng:      g.lng,
			Value:    len(g.ids),
			Boundary: ring,
		})
		sumLat += g.lat
		sumLng += g.lng
	}

	in := choropleth.Input{
		Legend:      "Unique count of: " + t.idCol,
		ValueColumn: t.idCol,
		Cells:       cells,
	}
	if len(groups) > 0 {
		in.Center = [2]float64{sumLat / float64(len(groups)), sumLng / float64(len(groups))}
	}
	return choropleth.Render(in)
}

type cellGroup struct {
	cell     h3.Cell
	lat, lng float64
	ids      map[string]struct{}
}

// aggregate groups fitted rows by cell. Grouping by cell index and grouping
// by quantized (lat,lng) partition the rows identically, but the index is an
// exact key where reformatted centroid floats are not.
func (t *Transform) aggregate() ([]*cellGroup, error) {
	byCell := make(map[h3.Cell]*cellGroup)
	for i, cell := range t.cells {
		g, ok := byCell[cell]
		if !ok {
			lat, err := t.frame.Float(i, t.latCol)
			if err != nil {
				return nil, err
			}
			lng, err := t.frame.Float(i, t.lngCol)
			if err != nil {
				return nil, err
			}
			g = &cellGroup{cell: cell, lat: lat, lng: lng, ids: make(map[string]struct{})}
			byCell[cell] = g
		}
		id, err := t.frame.Value(i, t.idCol)
		if err != nil {
			return nil, err
		}
		g.ids[entityKey(id)] = struct{}{}
	}

	out := make([]*cellGroup, 0, len(byCell))
	for _, g := range byCell {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].lat != out[j].lat {
			return out[i].lat < out[j].lat
		}
		return out[i].lng < out[j].lng
	})
	return out, nil
}

// entityKey canonicalizes an entity id for distinct counting. Type prefixes
// keep the string "1" and the number 1 from colliding.
func entityKey(v any) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	case float64:
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return "n:" + strconv.FormatFloat(float64(t), 'g', -1, 64)
	case int:
		return "n:" + strconv.Itoa(t)
	case int64:
		return "n:" + strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("v:%v", v)
	}
}
