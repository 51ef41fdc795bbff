// Spatial occupancy index for committed geometry
//
// The plane is quantized into fixed-size square cells; each cell stores
// the highest Z committed by each material so far. Collision queries are
// causal: geometry not yet committed in schedule order reads as
// unoccupied.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package occupancy

import "math"

// Cell identifies one quantized grid cell.
type Cell struct {
	X, Y int
}

// Footprint quantizes a set of planar points into deduplicated cells.
func Footprint(xs, ys []float64, cellSize float64) []Cell {
	seen := make(map[Cell]struct{}, len(xs))
	cells := make([]Cell, 0, len(xs))
	for i := range xs {
		c := Cell{
			X: int(math.Floor(xs[i] / cellSize)),
			Y: int(math.Floor(ys[i] / cellSize)),
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cells = append(cells, c)
	}
	return cells
}

// Grid is the per-material height map. It is mutated only by Commit,
// called exactly once per segment in schedule order.
type Grid struct {
	cellSize float64
	heights  map[int]map[Cell]float64
	maxZ     float64
}

// NewGrid creates an empty grid with the given cell size in mm.
func NewGrid(cellSize float64) *Grid {
	return &Grid{
		cellSize: cellSize,
		heights:  make(map[int]map[Cell]float64),
	}
}

// CellSize returns the quantization in mm.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

// Commit marks the footprint cells as occupied by the material up to
// height z. Heights only ever grow.
func (g *Grid) Commit(material int, footprint []Cell, z float64) {
	m := g.heights[material]
	if m == nil {
		m = make(map[Cell]float64)
		g.heights[material] = m
	}
	for _, c := range footprint {
		if z > m[c] {
			m[c] = z
		}
	}
	if z > g.maxZ {
		g.maxZ = z
	}
}

// Query reports whether any cell of the material within radius of
// (x, y) is occupied at or above minHeight. Cost is proportional to the
// number of cells inside the radius.
func (g *Grid) Query(x, y, radius, minHeight float64, material int) bool {
	m := g.heights[material]
	if len(m) == 0 {
		return false
	}
	cr := int(radius/g.cellSize) + 1
	cx := int(math.Floor(x / g.cellSize))
	cy := int(math.Floor(y / g.cellSize))
	for dx := -cr; dx <= cr; dx++ {
		for dy := -cr; dy <= cr; dy++ {
			h, ok := m[Cell{X: cx + dx, Y: cy + dy}]
			if !ok || h < minHeight {
				continue
			}
			// Distance from the query point to the cell center.
			ccx := (float64(cx+dx) + 0.5) * g.cellSize
			ccy := (float64(cy+dy) + 0.5) * g.cellSize
			if math.Hypot(ccx-x, ccy-y) <= radius {
				return true
			}
		}
	}
	return false
}

// MaxHeight returns the highest Z committed by any material.
func (g *Grid) MaxHeight() float64 {
	return g.maxZ
}
