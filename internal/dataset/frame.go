// Package dataset provides a small in-memory tabular structure used as the
// input and output format of the density pipeline.
package dataset

import (
	"fmt"
	"slices"
	"strconv"
)

// Row is a single record. Values are kept as decoded, untyped cells so that
// columns beyond the configured id/coordinate columns pass through untouched.
type Row map[string]any

type Frame struct {
	cols []string
	rows []Row
}

func New(cols []string, rows []Row) *Frame {
	f := &Frame{cols: slices.Clone(cols)}
	f.Append(rows...)
	return f
}

// Copy returns a deep per-row copy. Mutating the copy never affects the
// original frame.
func (f *Frame) Copy() *Frame {
	out := &Frame{
		cols: slices.Clone(f.cols),
		rows: make([]Row, 0, len(f.rows)),
	}
	for _, r := range f.rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.rows = append(out.rows, nr)
	}
	return out
}

func (f *Frame) Len() int { return len(f.rows) }

func (f *Frame) Columns() []string { return slices.Clone(f.cols) }

func (f *Frame) Row(i int) Row { return f.rows[i] }

// Append adds rows, registering any column names not seen before. Column
// order is first-seen order.
func (f *Frame) Append(rows ...Row) {
	for _, r := range rows {
		for k := range r {
			if !slices.Contains(f.cols, k) {
				f.cols = append(f.cols, k)
			}
		}
		f.rows = append(f.rows, r)
	}
}

// Extend appends every row of other, merging column sets.
func (f *Frame) Extend(other *Frame) {
	if other == nil {
		return
	}
	f.Append(other.rows...)
}

// Float reads a numeric cell. Missing columns and non-numeric values are
// shape errors surfaced to the caller.
func (f *Frame) Float(i int, col string) (float64, error) {
	v, ok := f.rows[i][col]
	if !ok {
		return 0, fmt.Errorf("row %d: missing column %q", i, col)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		x, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("row %d column %q: parse %q: %w", i, col, t, err)
		}
		return x, nil
	default:
		return 0, fmt.Errorf("row %d column %q: not numeric (got %T)", i, col, v)
	}
}

// Value reads a cell without type conversion.
func (f *Frame) Value(i int, col string) (any, error) {
	v, ok := f.rows[i][col]
	if !ok {
		return nil, fmt.Errorf("row %d: missing column %q", i, col)
	}
	return v, nil
}
