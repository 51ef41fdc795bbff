// Output stream generation from a batch schedule
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package generate

import (
	"fmt"

	"gcode-layerbatch/pkg/config"
	"gcode-layerbatch/pkg/errors"
	"gcode-layerbatch/pkg/gcode"
	"gcode-layerbatch/pkg/log"
	"gcode-layerbatch/pkg/pool"
	"gcode-layerbatch/pkg/scheduler"
	"gcode-layerbatch/pkg/segment"
	"gcode-layerbatch/pkg/toolchange"
	"gcode-layerbatch/pkg/travel"
)

// Summary reports what the transformation did.
type Summary struct {
	Layers               int
	Segments             int
	BatchCount           int
	OriginalToolChanges  int
	ResultingToolChanges int
	InjectedCommands     int
	Warnings             []string
}

// Generator turns a batch schedule back into a G-code stream. Original
// commands pass through verbatim; only tool changes, hops and prime
// tower layers are injected at batch boundaries.
type Generator struct {
	cfg     *config.Config
	planner *travel.Planner
	logger  *log.Logger
}

func New(cfg *config.Config) *Generator {
	return &Generator{
		cfg:     cfg,
		planner: travel.NewPlanner(cfg),
		logger:  log.GetLogger("generate"),
	}
}

// Generate emits header, batches and footer. Each original command
// appears exactly once; the generator re-verifies that before
// returning and fails rather than produce a lossy stream.
func (g *Generator) Generate(doc *segment.Document, batches []*scheduler.Batch) ([]byte, *Summary, error) {
	changer := toolchange.NewSynchronizer(g.cfg, doc)
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	sum := &Summary{
		Layers:              doc.Layers(),
		Segments:            len(doc.Segments),
		BatchCount:          len(batches),
		OriginalToolChanges: doc.OriginalToolChanges,
	}

	// Modal state observed while emitting, used to make injections
	// transparent to the surrounding original commands.
	var lastF, lastE, lastZ, maxZ float64
	var emittedOriginal int
	observe := func(c gcode.Command) {
		if c.Kind != gcode.KindMove {
			return
		}
		if c.HasF {
			lastF = c.F
		}
		if c.HasE {
			lastE = c.E
		}
		if c.HasZ {
			lastZ = c.Z
		}
		// Geometry height grows where extrusion happens, not where
		// travel moves pass.
		if c.IsExtruding() && lastZ > maxZ {
			maxZ = lastZ
		}
	}
	emit := func(c gcode.Command) {
		buf.WriteString(c.Text())
		buf.WriteByte('\n')
		observe(c)
	}
	inject := func(cmds []gcode.Command) {
		for _, c := range cmds {
			emit(c)
			sum.InjectedCommands++
		}
	}

	for _, c := range doc.Header {
		emit(c)
		emittedOriginal++
	}

	curTool := 0
	toolKnown := doc.InitialToolKnown
	if toolKnown {
		curTool = doc.InitialTool
	} else if len(batches) > 0 {
		// No header selection: the first batch's material is assumed
		// mounted, as the original stream assumed it.
		curTool = batches[0].Material
		toolKnown = true
	}

	lastLayer := 0
	for _, b := range batches {
		changed := false
		if b.Material != curTool {
			inject(changer.ChangeTo(curTool, b.Material))
			curTool = b.Material
			sum.ResultingToolChanges++
			changed = true
		}
		towered := false
		if changed {
			if tw := changer.TowerLayer(b.Material, lastE, max(lastZ, maxZ)); tw != nil {
				inject(tw)
				towered = true
			}
		}

		for i, seg := range b.Segments {
			if seg.Layer != lastLayer+1 || (i == 0 && towered) {
				if x, y, ok := seg.FirstXY(); ok {
					hop := g.planner.Plan(max(lastZ, maxZ), x, y, seg.Z, lastF)
					inject(hop.Commands)
				}
			}
			for _, c := range seg.Commands {
				emit(c)
				emittedOriginal++
			}
			lastLayer = seg.Layer
		}
	}

	for _, c := range doc.Footer {
		emit(c)
		emittedOriginal++
	}

	want := len(doc.Header) + doc.CommandCount() + len(doc.Footer)
	if emittedOriginal != want {
		return nil, nil, errors.ConsistencyError(fmt.Sprintf(
			"emitted %d original commands, input had %d", emittedOriginal, want))
	}

	sum.Warnings = changer.Warnings()
	g.logger.InfoFields("generation complete", log.Fields{
		"batches":      sum.BatchCount,
		"tool_changes": sum.ResultingToolChanges,
		"injected":     sum.InjectedCommands,
	})

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, sum, nil
}
