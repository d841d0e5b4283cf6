// Package choropleth renders aggregated cell values into a serializable map
// description: a GeoJSON FeatureCollection plus framing and legend metadata.
// Styling is left entirely to whatever consumes the output.
package choropleth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/citygrid/hexdensity/internal/hexgrid"
)

// Cell is one shaded region: a hexagon boundary and its aggregate value.
type Cell struct {
	Lat      float64
	Lng      float64
	Value    int
	Boundary hexgrid.Ring
}

type Input struct {
	// Center is the initial map framing as (lat, lng).
	Center [2]float64

	Legend      string
	ValueColumn string
	Cells       []Cell
}

// Map is the opaque render result. Marshal it to hand off to a client-side
// renderer.
type Map struct {
	center   [2]float64
	legend   string
	joinKey  string
	valueCol string
	features []feature
}

type feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   geometry       `json:"geometry"`
}

type geometry struct {
	Type        string         `json:"type"`
	Coordinates []hexgrid.Ring `json:"coordinates"`
}

// Render builds a map from aggregated cells. Every cell must carry a
// boundary; the join key is a synthetic per-render column used only to tie
// features to their values.
func Render(in Input) (*Map, error) {
	if in.ValueColumn == "" {
		return nil, errors.New("choropleth: value column is required")
	}

	joinKey := uuid.NewString()
	m := &Map{
		center:   in.Center,
		legend:   in.Legend,
		joinKey:  joinKey,
		valueCol: in.ValueColumn,
		features: make([]feature, 0, len(in.Cells)),
	}

	for i, c := range in.Cells {
		if len(c.Boundary) == 0 {
			return nil, fmt.Errorf("choropleth: cell %d has no boundary geometry", i)
		}
		m.features = append(m.features, feature{
			Type: "Feature",
			Properties: map[string]any{
				joinKey:        i,
				in.ValueColumn: c.Value,
				"lat":          c.Lat,
				"lng":          c.Lng,
			},
			Geometry: geometry{
				Type:        "Polygon",
				Coordinates: []hexgrid.Ring{c.Boundary},
			},
		})
	}
	return m, nil
}

func (m *Map) Center() (lat, lng float64) { return m.center[0], m.center[1] }

func (m *Map) Legend() string { return m.legend }

// JoinKey is the synthetic column tying features to values. Not semantically
// meaningful; unique per render.
func (m *Map) JoinKey() string { return m.joinKey }

func (m *Map) FeatureCount() int { return len(m.features) }

func (m *Map) MarshalJSON() ([]byte, error) {
	out := struct {
		Center  [2]float64 `json:"center"`
		Legend  string     `json:"legend"`
		KeyOn   string     `json:"key_on"`
		Columns [2]string  `json:"columns"`
		GeoJSON any        `json:"geojson"`
	}{
		Center:  m.center,
		Legend:  m.legend,
		KeyOn:   "feature.properties." + m.joinKey,
		Columns: [2]string{m.joinKey, m.valueCol},
		GeoJSON: struct {
			Type     string    `json:"type"`
			Features []feature `json:"features"`
		}{
			Type:     "FeatureCollection",
			Features: m.features,
		},
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal choropleth map: %w", err)
	}
	return b, nil
}
