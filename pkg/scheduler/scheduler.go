// Greedy collision-aware batch scheduler
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package scheduler

import (
	"gcode-layerbatch/pkg/collision"
	"gcode-layerbatch/pkg/config"
	"gcode-layerbatch/pkg/errors"
	"gcode-layerbatch/pkg/log"
	"gcode-layerbatch/pkg/occupancy"
	"gcode-layerbatch/pkg/segment"
)

// ScheduleState carries the scheduler's working state through a single
// pass over the segment stream. It is process-local and never shared:
// every Schedule call builds a fresh one.
type ScheduleState struct {
	grid   *occupancy.Grid
	staged *occupancy.Grid // forward strictness only, nil in causal mode

	// committed layers in commit order (schedule order, not file order)
	committed []collision.CommittedLayer
	// forward mode hazard overlay: committed plus open-batch layers
	stagedLayers []collision.CommittedLayer

	open      map[int]*Batch // material -> open batch
	openOrder []*Batch       // open batches in the order they were opened
}

func newScheduleState(cfg *config.Config) *ScheduleState {
	st := &ScheduleState{
		grid: occupancy.NewGrid(cfg.CellSize),
		open: make(map[int]*Batch),
	}
	if cfg.Strictness == config.StrictForward {
		st.staged = occupancy.NewGrid(cfg.CellSize)
	}
	return st
}

// surfaces returns the occupancy grids collision queries run against.
func (st *ScheduleState) surfaces() []*occupancy.Grid {
	if st.staged != nil {
		return []*occupancy.Grid{st.grid, st.staged}
	}
	return []*occupancy.Grid{st.grid}
}

// hazards returns the layer list collision queries iterate. In causal
// mode only committed layers are hazards; in forward mode open-batch
// layers count too.
func (st *ScheduleState) hazards() []collision.CommittedLayer {
	if st.staged == nil {
		return st.committed
	}
	out := make([]collision.CommittedLayer, 0, len(st.committed)+len(st.stagedLayers))
	out = append(out, st.committed...)
	out = append(out, st.stagedLayers...)
	return out
}

func (st *ScheduleState) stage(seg *segment.ObjectSegment) {
	if st.staged == nil {
		return
	}
	st.staged.Commit(seg.Material, seg.Footprint, seg.Z)
	st.stagedLayers = append(st.stagedLayers, collision.CommittedLayer{
		Layer:    seg.Layer,
		Z:        seg.Z,
		Material: seg.Material,
	})
}

func (st *ScheduleState) commit(seg *segment.ObjectSegment) {
	st.grid.Commit(seg.Material, seg.Footprint, seg.Z)
	st.committed = append(st.committed, collision.CommittedLayer{
		Layer:    seg.Layer,
		Z:        seg.Z,
		Material: seg.Material,
	})
}

// Scheduler runs the single greedy pass that groups segments into
// batches. One open batch per material; a batch closes when its
// material's next segment cannot extend it, and closing commits the
// batch's geometry in schedule order.
type Scheduler struct {
	cfg      *config.Config
	analyzer *collision.Analyzer
	logger   *log.Logger
}

func New(cfg *config.Config) *Scheduler {
	nozzle := collision.NozzleGeometry{
		TipDiameter:   cfg.NozzleTipDiameter,
		ConeHalfAngle: cfg.ConeHalfAngle,
		ConeHeight:    cfg.ConeHeight,
	}
	return &Scheduler{
		cfg:      cfg,
		analyzer: collision.NewAnalyzer(nozzle, cfg.CollisionMargin),
		logger:   log.GetLogger("scheduler"),
	}
}

// Schedule consumes segments in physical layer order and returns the
// batches in emission order. The input document is not modified.
func (s *Scheduler) Schedule(doc *segment.Document) ([]*Batch, *ScheduleState, error) {
	for _, seg := range doc.Segments {
		if err := seg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	st := newScheduleState(s.cfg)
	var batches []*Batch

	closeBatch := func(b *Batch) {
		for _, seg := range b.Segments {
			st.commit(seg)
		}
		batches = append(batches, b)
		delete(st.open, b.Material)
		for i, ob := range st.openOrder {
			if ob == b {
				st.openOrder = append(st.openOrder[:i], st.openOrder[i+1:]...)
				break
			}
		}
		s.logger.DebugFields("batch closed", log.Fields{
			"material": b.Material,
			"start":    b.StartLayer,
			"end":      b.EndLayer,
			"layers":   b.Layers(),
		})
	}

	for _, seg := range doc.Segments {
		open := st.open[seg.Material]
		if open != nil && s.canExtend(st, open, seg) {
			open.Segments = append(open.Segments, seg)
			open.EndLayer = seg.Layer
			st.stage(seg)
			continue
		}
		if open != nil {
			closeBatch(open)
		}
		// Every segment must be printable as a singleton. A failure
		// here means the input itself interleaves materials in a way
		// no schedule can honor.
		jump := collision.Jump{
			Material:   seg.Material,
			BatchStart: seg.Layer,
			Layer:      seg.Layer,
			Z:          seg.Z,
			Footprint:  seg.Footprint,
		}
		if !s.analyzer.SafeSingleton(jump, st.hazards(), st.surfaces()...) {
			return nil, nil, errors.UnsafeSingletonError(seg.Layer, seg.Material)
		}
		b := &Batch{
			Material:   seg.Material,
			StartLayer: seg.Layer,
			EndLayer:   seg.Layer,
			Segments:   []*segment.ObjectSegment{seg},
		}
		st.open[seg.Material] = b
		st.openOrder = append(st.openOrder, b)
		st.stage(seg)
	}

	// End of input: flush remaining open batches in the order opened.
	for len(st.openOrder) > 0 {
		closeBatch(st.openOrder[0])
	}

	s.logger.InfoFields("schedule complete", log.Fields{
		"segments": len(doc.Segments),
		"batches":  len(batches),
	})
	return batches, st, nil
}

// canExtend reports whether seg may join its material's open batch:
// the batch's physical-layer span stays within the configured cap, and
// printing the candidate stays clear of geometry committed at the
// intervening layers the batch skips over.
func (s *Scheduler) canExtend(st *ScheduleState, open *Batch, seg *segment.ObjectSegment) bool {
	if seg.Layer-open.StartLayer+1 > s.cfg.MaxBatchLayers {
		return false
	}
	jump := collision.Jump{
		Material:   seg.Material,
		BatchStart: open.StartLayer,
		Layer:      seg.Layer,
		Z:          seg.Z,
		Footprint:  seg.Footprint,
	}
	if !s.analyzer.SafeExtension(jump, st.hazards(), st.surfaces()...) {
		s.logger.DebugFields("extension rejected", log.Fields{
			"material": seg.Material,
			"layer":    seg.Layer,
			"start":    open.StartLayer,
		})
		return false
	}
	return true
}
