// Batch model
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package scheduler

import "gcode-layerbatch/pkg/segment"

// Batch is a scheduler-produced run of a material's consecutive
// segments, ascending in layer index and bounded in physical-layer
// span. Immutable after the scheduler closes it: generation injects
// commands around a batch, never into it.
type Batch struct {
	Material   int
	StartLayer int
	EndLayer   int
	Segments   []*segment.ObjectSegment
}

// Layers returns the number of layers the batch covers.
func (b *Batch) Layers() int {
	return len(b.Segments)
}
