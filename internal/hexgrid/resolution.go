// Package hexgrid maps geographic points onto the H3 hexagonal grid and
// describes the geometric characteristics of each resolution level.
package hexgrid

import (
	"errors"
	"fmt"
)

var ErrResolutionOutOfRange = errors.New("resolution must be 0..15")

// Resolution describes one level of the H3 tessellation, per
// https://h3geo.org/docs/core-library/restable/
type Resolution struct {
	// Level is the resolution number, 0 (coarsest) to 15 (finest).
	Level int

	// AreaKm2 is the average hexagon area in square kilometers.
	AreaKm2 float64

	// AvgEdgeLenKm is the average hexagon edge length in kilometers.
	AvgEdgeLenKm float64
}

// index maps to the resolution level
var resolutionTable = [16]struct {
	areaKm2      float64
	avgEdgeLenKm float64
}{
	{4_250_546.8477000, 1_107.712591000},
	{607_220.9782429, 418.676005500},
	{86_745.8540347, 158.244655800},
	{12_392.2648621, 59.810857940},
	{1_770.3235517, 22.606379400},
	{252.9033645, 8.544408276},
	{36.1290521, 3.229482772},
	{5.1612932, 1.220629759},
	{0.7373276, 0.461354684},
	{0.1053325, 0.174375668},
	{0.0150475, 0.065907807},
	{0.0021496, 0.024910561},
	{0.0003071, 0.009415526},
	{0.0000439, 0.003559893},
	{0.0000063, 0.001348575},
	{0.0000009, 0.000509713},
}

// FromLevel returns the reference characteristics for a resolution level.
func FromLevel(level int) (Resolution, error) {
	if err := ValidateRes(level); err != nil {
		return Resolution{}, err
	}
	e := resolutionTable[level]
	return Resolution{
		Level:        level,
		AreaKm2:      e.areaKm2,
		AvgEdgeLenKm: e.avgEdgeLenKm,
	}, nil
}

func ValidateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d: %w", res, ErrResolutionOutOfRange)
	}
	return nil
}
