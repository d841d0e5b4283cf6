// Package boundarycache memoizes hex cell boundary polygons across requests.
// Boundary geometry is deterministic per cell, so entries never invalidate;
// the LRU bound only caps memory.
package boundarycache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	h3 "github.com/uber/h3-go/v4"

	"github.com/citygrid/hexdensity/internal/hexgrid"
)

type Cache struct {
	lru *lru.Cache[h3.Cell, hexgrid.Ring]
}

func New(size int) (*Cache, error) {
	c, err := lru.New[h3.Cell, hexgrid.Ring](size)
	if err != nil {
		return nil, fmt.Errorf("boundarycache: %w", err)
	}
	return &Cache{lru: c}, nil
}

// Boundary returns the cell's ring, computing and caching it on first use.
func (c *Cache) Boundary(cell h3.Cell) (hexgrid.Ring, error) {
	if ring, ok := c.lru.Get(cell); ok {
		return ring, nil
	}
	ring, err := hexgrid.Boundary(cell)
	if err != nil {
		return nil, err
	}
	c.lru.Add(cell, ring)
	return ring, nil
}

func (c *Cache) Len() int { return c.lru.Len() }
