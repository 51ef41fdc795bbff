// Collision analysis for batched layer printing
//
// The analyzer answers whether a candidate scheduling step keeps the
// nozzle clear of already-committed geometry of the other material. All
// methods are pure queries: no state is mutated, and identical inputs
// give identical answers. Collision reasoning runs over the schedule's
// causal commit order, never file order, because rearranged printing may
// place a material's own future layers ahead of or behind the other
// material's deposited geometry.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package collision

import "gcode-layerbatch/pkg/occupancy"

// CommittedLayer identifies one already-committed layer of a material.
type CommittedLayer struct {
	Layer    int
	Z        float64
	Material int
}

// Jump is a candidate scheduling step: printing the segment at Layer/Z
// as part of a batch that started at BatchStart.
type Jump struct {
	Material   int
	BatchStart int
	Layer      int
	Z          float64
	Footprint  []occupancy.Cell
}

// Analyzer evaluates jump safety against occupancy surfaces.
type Analyzer struct {
	nozzle NozzleGeometry
	margin float64
}

// NewAnalyzer creates an analyzer for the given nozzle and safety
// margin (mm).
func NewAnalyzer(nozzle NozzleGeometry, margin float64) *Analyzer {
	return &Analyzer{nozzle: nozzle, margin: margin}
}

// Nozzle returns the analyzer's nozzle geometry.
func (a *Analyzer) Nozzle() NozzleGeometry {
	return a.nozzle
}

// SafeExtension reports whether a batch that started at jump.BatchStart
// may extend to jump.Layer. For each committed other-material layer
// intervening between batch start and the candidate, the nozzle radius
// at clearance d = jump.Z - z(intervening) must clear that layer's
// deposits around the candidate's planned path. Zero or negative
// clearance (no actual skip) is trivially safe.
func (a *Analyzer) SafeExtension(jump Jump, intervening []CommittedLayer, surfaces ...*occupancy.Grid) bool {
	for _, li := range intervening {
		if li.Material == jump.Material {
			continue
		}
		if li.Layer <= jump.BatchStart || li.Layer >= jump.Layer {
			continue
		}
		d := jump.Z - li.Z
		if d <= 0 {
			continue
		}
		r := a.nozzle.RadiusAt(d) + a.margin
		if a.pathNear(jump.Footprint, r, li.Z, li.Material, surfaces) {
			return false
		}
	}
	return true
}

// SafeSingleton reports whether the segment may be printed as its own
// single-layer batch given geometry the schedule has already placed
// above it. A failure here means the input itself is impossible to
// print: the minimum-safety guarantee of per-layer alternation does not
// hold for it.
func (a *Analyzer) SafeSingleton(jump Jump, committedAbove []CommittedLayer, surfaces ...*occupancy.Grid) bool {
	for _, li := range committedAbove {
		if li.Material == jump.Material {
			continue
		}
		d := li.Z - jump.Z
		if d <= 0 {
			continue
		}
		r := a.nozzle.RadiusAt(d) + a.margin
		if a.pathNear(jump.Footprint, r, li.Z, li.Material, surfaces) {
			return false
		}
	}
	return true
}

// pathNear reports whether any surface has material-owned cells at or
// above minHeight within radius of the candidate path.
func (a *Analyzer) pathNear(footprint []occupancy.Cell, radius, minHeight float64, material int, surfaces []*occupancy.Grid) bool {
	for _, g := range surfaces {
		if g == nil {
			continue
		}
		cs := g.CellSize()
		for _, c := range footprint {
			x := (float64(c.X) + 0.5) * cs
			y := (float64(c.Y) + 0.5) * cs
			if g.Query(x, y, radius, minHeight, material) {
				return true
			}
		}
	}
	return false
}
