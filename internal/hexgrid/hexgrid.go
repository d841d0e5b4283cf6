package hexgrid

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

// Ring is a closed GeoJSON-style linear ring of [lng,lat] pairs describing a
// hexagon boundary. The first and last vertex are identical.
type Ring [][2]float64

// CellForPoint returns the H3 cell containing (lat,lng) at the given
// resolution. Coordinates are degrees in EPSG:4326.
func CellForPoint(lat, lng float64, res int) (h3.Cell, error) {
	if err := ValidateRes(res); err != nil {
		return 0, err
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil {
		return 0, fmt.Errorf("h3 point to cell: %w", err)
	}
	return cell, nil
}

// Centroid returns the center of the cell as (lat, lng).
func Centroid(cell h3.Cell) (float64, float64, error) {
	ll, err := h3.CellToLatLng(cell)
	if err != nil {
		return 0, 0, fmt.Errorf("h3 cell center: %w", err)
	}
	return ll.Lat, ll.Lng, nil
}

// Boundary returns the cell's hexagon outline as a closed ring.
func Boundary(cell h3.Cell) (Ring, error) {
	bnd, err := h3.CellToBoundary(cell)
	if err != nil {
		return nil, fmt.Errorf("h3 cell boundary: %w", err)
	}
	ring := make(Ring, 0, len(bnd)+1)
	for _, v := range bnd {
		ring = append(ring, [2]float64{v.Lng, v.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring, nil
}
