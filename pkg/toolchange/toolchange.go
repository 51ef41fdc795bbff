// Tool-change emission and prime-tower synchronization
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package toolchange

import (
	"fmt"
	"math"

	"gcode-layerbatch/pkg/config"
	"gcode-layerbatch/pkg/errors"
	"gcode-layerbatch/pkg/gcode"
	"gcode-layerbatch/pkg/log"
	"gcode-layerbatch/pkg/segment"
	"gcode-layerbatch/pkg/travel"
)

// filamentArea is the cross-section of 1.75 mm filament, used to turn
// purge volume into E-axis length.
const filamentArea = math.Pi * (1.75 / 2) * (1.75 / 2)

// Synchronizer emits tool-change sequences at batch boundaries and
// keeps prime towers level across materials. Sequences captured from
// the input are preferred per (from, to) pair; a minimal synthesized
// fallback covers pairs the input never exercised, with a non-fatal
// warning.
type Synchronizer struct {
	cfg       *config.Config
	captured  map[segment.ToolPair][]gcode.Command
	counters  map[int]int // material -> tower layers printed
	materials []int
	warnings  []string
	emitted   int
	planner   *travel.Planner
	logger    *log.Logger
}

func NewSynchronizer(cfg *config.Config, doc *segment.Document) *Synchronizer {
	s := &Synchronizer{
		cfg:       cfg,
		captured:  doc.ToolChanges,
		counters:  make(map[int]int),
		materials: doc.Materials(),
		planner:   travel.NewPlanner(cfg),
		logger:    log.GetLogger("toolchange"),
	}
	if s.captured == nil {
		s.captured = make(map[segment.ToolPair][]gcode.Command)
	}
	for _, m := range s.materials {
		s.counters[m] = 0
	}
	return s
}

// ChangeTo returns the command sequence switching from one tool to
// another. Captured sequences are replayed verbatim; otherwise a
// minimal select-and-dwell fallback is synthesized and a warning
// recorded.
func (s *Synchronizer) ChangeTo(from, to int) []gcode.Command {
	s.emitted++
	if seq, ok := s.captured[segment.ToolPair{From: from, To: to}]; ok {
		return seq
	}
	warn := errors.MissingToolChangeError(from, to)
	s.warnings = append(s.warnings, warn.Error())
	s.logger.WarnFields("no captured sequence, synthesizing", log.Fields{
		"from": from,
		"to":   to,
	})
	return []gcode.Command{
		gcode.NewComment(fmt.Sprintf("synthesized tool change T%d -> T%d", from, to)),
		gcode.NewToolSelect(from, to),
		gcode.NewRaw("M400"),
		gcode.NewRaw("G4 P2000"),
	}
}

// TowerLayer returns the purge layer for a material's prime tower, or
// nil when towers are disabled or the material's tower is already at
// parity. clearZ is the maximum Z printed so far; the sequence opens
// with a hop above it so the approach to the tower never crosses the
// printed surface below clearance. lastE is the E-axis position the
// surrounding stream expects; it is restored after the purge so
// absolute extrusion bookkeeping in the original commands survives the
// injection.
//
// Parity rule: a material may only add a tower layer while its counter
// does not exceed every other material's counter, so tower tops never
// differ by more than one layer height.
func (s *Synchronizer) TowerLayer(material int, lastE, clearZ float64) []gcode.Command {
	if !s.cfg.PrimeTowers {
		return nil
	}
	for _, m := range s.materials {
		if m != material && s.counters[material] > s.counters[m] {
			return nil
		}
	}

	t := s.cfg.Tower
	z := float64(s.counters[material]+1) * t.LayerHeight
	cx := t.PositionX + float64(material)*(t.Size+t.Spacing)
	cy := t.PositionY

	hop := s.planner.Plan(clearZ, cx-t.Size/2, cy-t.Size/2, z, 0)
	cmds := []gcode.Command{
		gcode.NewComment(fmt.Sprintf("prime tower T%d layer %d", material, s.counters[material]+1)),
	}
	cmds = append(cmds, hop.Commands...)
	cmds = append(cmds, gcode.NewRaw("G92 E0"))

	// Concentric square perimeters from the outside in, until the
	// configured purge volume is deposited or the tower fills up.
	ePerMM := t.ExtrusionWidth * t.LayerHeight / filamentArea
	volPerMM := t.ExtrusionWidth * t.LayerHeight
	var vol, e float64
	for side := t.Size; side > t.ExtrusionWidth && vol < t.PurgeVolume; side -= 2 * t.ExtrusionWidth {
		h := side / 2
		cmds = append(cmds, gcode.NewTravelMove(cx-h, cy-h, s.cfg.TravelFeedrate))
		for _, p := range [][2]float64{{cx + h, cy - h}, {cx + h, cy + h}, {cx - h, cy + h}, {cx - h, cy - h}} {
			e += side * ePerMM
			vol += side * volPerMM
			cmds = append(cmds, gcode.NewExtrudeMove(p[0], p[1], e))
		}
	}
	cmds = append(cmds, gcode.NewRaw("G92 E%.5f", lastE))

	s.counters[material]++
	return cmds
}

// TowerCount returns the number of tower layers printed for a material.
func (s *Synchronizer) TowerCount(material int) int {
	return s.counters[material]
}

// Emitted returns the number of tool changes issued so far.
func (s *Synchronizer) Emitted() int {
	return s.emitted
}

// Warnings returns non-fatal issues accumulated during emission.
func (s *Synchronizer) Warnings() []string {
	return s.warnings
}
