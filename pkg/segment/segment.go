// Segment model for multi-material G-code
//
// An ObjectSegment is the contiguous run of commands one material
// contributes to one physical layer. Segments are immutable once
// produced by the parser; the scheduler only references them.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package segment

import (
	"sort"
	"sync"

	"gcode-layerbatch/pkg/errors"
	"gcode-layerbatch/pkg/gcode"
	"gcode-layerbatch/pkg/occupancy"
)

// ObjectSegment is one material's contribution to one physical layer.
type ObjectSegment struct {
	// ID is the segment's position in file order, starting at 0.
	ID int

	// Layer is the 1-based physical layer index.
	Layer int

	// Material is the tool id that prints this segment.
	Material int

	// Z is the layer's height in mm.
	Z float64

	// Commands is the ordered original command list, re-emitted verbatim.
	Commands []gcode.Command

	// Footprint is the quantized planar extent of the segment's
	// extruding moves, filled in by ComputeFootprints.
	Footprint []occupancy.Cell
}

// FirstXY returns the segment's first planar position, the point a
// travel move must end at before the segment's commands resume.
func (s *ObjectSegment) FirstXY() (x, y float64, ok bool) {
	for _, c := range s.Commands {
		if c.Kind == gcode.KindMove && c.HasX && c.HasY {
			return c.X, c.Y, true
		}
	}
	return 0, 0, false
}

// Validate checks the parser contract for this segment.
func (s *ObjectSegment) Validate() error {
	if len(s.Commands) == 0 {
		return errors.MalformedSegmentError(s.Layer, s.Material, "segment has no commands")
	}
	if len(s.Footprint) == 0 {
		return errors.MalformedSegmentError(s.Layer, s.Material, "segment has no footprint")
	}
	return nil
}

// ToolPair keys a captured tool-change sequence.
type ToolPair struct {
	From, To int
}

// Document is the parser's output for a whole file: untouched header and
// footer blocks, the ordered segment sequence, and the captured
// tool-change sequences keyed by pair.
type Document struct {
	Header   []gcode.Command
	Footer   []gcode.Command
	Segments []*ObjectSegment

	// ToolChanges holds the first captured sequence per (from,to) pair.
	ToolChanges map[ToolPair][]gcode.Command

	// OriginalToolChanges counts physical tool changes in the input.
	OriginalToolChanges int

	// InitialTool is the tool selected by the header, valid when
	// InitialToolKnown is set.
	InitialTool      int
	InitialToolKnown bool
}

// Materials returns the sorted distinct material ids in the document.
func (d *Document) Materials() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, s := range d.Segments {
		if _, ok := seen[s.Material]; !ok {
			seen[s.Material] = struct{}{}
			out = append(out, s.Material)
		}
	}
	sort.Ints(out)
	return out
}

// Layers returns the highest physical layer index.
func (d *Document) Layers() int {
	max := 0
	for _, s := range d.Segments {
		if s.Layer > max {
			max = s.Layer
		}
	}
	return max
}

// CommandCount returns the total number of original segment commands.
func (d *Document) CommandCount() int {
	n := 0
	for _, s := range d.Segments {
		n += len(s.Commands)
	}
	return n
}

// ComputeFootprints quantizes every segment's extruding moves into grid
// cells. Footprints depend only on the segment itself, not on schedule
// order, so the work runs on a bounded worker pool before the
// sequential scheduling pass.
func ComputeFootprints(segs []*ObjectSegment, cellSize float64, workers int) {
	if workers < 1 {
		workers = 1
	}
	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				segs[i].Footprint = footprintOf(segs[i], cellSize)
			}
		}()
	}
	for i := range segs {
		idx <- i
	}
	close(idx)
	wg.Wait()
}

func footprintOf(s *ObjectSegment, cellSize float64) []occupancy.Cell {
	var xs, ys []float64
	for _, c := range s.Commands {
		if c.IsExtruding() && c.HasX && c.HasY {
			xs = append(xs, c.X)
			ys = append(ys, c.Y)
		}
	}
	return occupancy.Footprint(xs, ys, cellSize)
}
