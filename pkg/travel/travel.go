// Z-hop travel planning between non-adjacent layers
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package travel

import (
	"gcode-layerbatch/pkg/config"
	"gcode-layerbatch/pkg/gcode"
)

// Planner produces the hop sequences injected when the print head must
// move to a layer that is not the immediate successor of where it last
// printed. The move order is fixed: raise Z, travel in XY, lower Z.
// The three moves are never combined into a diagonal because clearance
// is reasoned about per height, not along a 3D path.
type Planner struct {
	cfg *config.Config
}

func NewPlanner(cfg *config.Config) *Planner {
	return &Planner{cfg: cfg}
}

// Hop describes one planned hop sequence plus the state it must leave
// behind.
type Hop struct {
	Commands []gcode.Command
	// HopZ is the safe height the sequence rises to before traveling.
	HopZ float64
}

// Plan builds the hop from (fromZ) down or up to a destination at
// (x, y, toZ). fromZ is the caller's clearance height, the maximum Z
// printed so far; the travel happens at max(fromZ, toZ) plus the
// configured hop height. restoreFeedrate, when positive, is re-issued
// after the sequence so the following original commands see the modal
// feedrate they were sliced with. Extrusion state is untouched: every
// injected move is travel-only.
func (p *Planner) Plan(fromZ, x, y, toZ, restoreFeedrate float64) Hop {
	hopZ := fromZ
	if toZ > hopZ {
		hopZ = toZ
	}
	hopZ += p.cfg.ZHopHeight

	cmds := []gcode.Command{
		gcode.NewZMove(hopZ, p.cfg.ZHopFeedrate),
		gcode.NewTravelMove(x, y, p.cfg.TravelFeedrate),
		gcode.NewZMove(toZ, p.cfg.ZHopFeedrate),
	}
	if restoreFeedrate > 0 {
		cmds = append(cmds, gcode.NewFeedrate(restoreFeedrate))
	}
	return Hop{Commands: cmds, HopZ: hopZ}
}
