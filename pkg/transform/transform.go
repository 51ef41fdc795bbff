// End-to-end layer batching transformation
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package transform

import (
	"runtime"

	"gcode-layerbatch/pkg/config"
	"gcode-layerbatch/pkg/generate"
	"gcode-layerbatch/pkg/log"
	"gcode-layerbatch/pkg/scheduler"
	"gcode-layerbatch/pkg/segment"
)

// Run executes the whole pipeline on a parsed document: footprint
// computation, batch scheduling and stream generation. The function is
// pure with respect to its inputs apart from filling segment
// footprints; identical (document, configuration) pairs produce
// byte-identical output. On error no output is returned at all, so a
// caller can never write a partial stream.
func Run(doc *segment.Document, cfg *config.Config) ([]byte, *generate.Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := log.GetLogger("transform")
	logger.InfoFields("input parsed", log.Fields{
		"layers":       doc.Layers(),
		"segments":     len(doc.Segments),
		"materials":    len(doc.Materials()),
		"tool_changes": doc.OriginalToolChanges,
	})

	segment.ComputeFootprints(doc.Segments, cfg.CellSize, runtime.NumCPU())

	batches, _, err := scheduler.New(cfg).Schedule(doc)
	if err != nil {
		return nil, nil, err
	}

	return generate.New(cfg).Generate(doc, batches)
}

// RunBytes parses raw G-code and runs the pipeline on it.
func RunBytes(data []byte, cfg *config.Config) ([]byte, *generate.Summary, error) {
	return Run(segment.Parse(data), cfg)
}

// RunFile memory-maps and parses a G-code file, then runs the pipeline.
func RunFile(path string, cfg *config.Config) ([]byte, *generate.Summary, error) {
	doc, err := segment.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	return Run(doc, cfg)
}
