// Package gcode models G-code commands as an exhaustive tagged variant.
// Downstream components (collision analyzer, generator) switch on the
// command kind and never pattern-match free text.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"fmt"
	"strings"
)

// Kind is the command variant tag.
type Kind int

const (
	// KindRaw is any command the transformer passes through untouched
	// (temperatures, fans, acceleration, firmware-specific codes).
	KindRaw Kind = iota

	// KindComment is a pure comment line.
	KindComment

	// KindMove is a G0/G1 motion command.
	KindMove

	// KindToolSelect is a bare tool-select command (T0, T1, ...).
	KindToolSelect

	// KindToolChange is a captured tool-change sequence: the T<n> marker
	// plus the surrounding heat/purge/wipe commands, kept as a unit.
	KindToolChange
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindComment:
		return "comment"
	case KindMove:
		return "move"
	case KindToolSelect:
		return "tool-select"
	case KindToolChange:
		return "tool-change"
	default:
		return "unknown"
	}
}

// Command is a single G-code command. Fields beyond Kind and Raw are
// populated per variant. Original commands carry their verbatim input
// text in Raw; synthesized commands carry the text built for them.
type Command struct {
	Kind Kind
	Raw  string

	// Move parameters; Has* flags record which words were present.
	X, Y, Z, E, F                float64
	HasX, HasY, HasZ, HasE, HasF bool

	// Tool ids for KindToolSelect and KindToolChange. FromTool is -1
	// when the predecessor tool is unknown.
	FromTool, ToTool int

	// Sub holds the commands of a captured tool-change sequence.
	Sub []Command
}

// Text returns the command's G-code text, newline-free. For a captured
// tool-change sequence this is the joined text of its sub-commands.
func (c Command) Text() string {
	if c.Kind == KindToolChange {
		parts := make([]string, len(c.Sub))
		for i, s := range c.Sub {
			parts[i] = s.Text()
		}
		return strings.Join(parts, "\n")
	}
	return c.Raw
}

// IsExtruding reports whether the move deposits material.
func (c Command) IsExtruding() bool {
	return c.Kind == KindMove && c.HasE && c.E > 0
}

// IsTravel reports whether the move changes XY without extruding.
func (c Command) IsTravel() bool {
	return c.Kind == KindMove && !c.IsExtruding() && (c.HasX || c.HasY)
}

// NewComment builds a synthesized comment command.
func NewComment(text string) Command {
	return Command{Kind: KindComment, Raw: "; " + text}
}

// NewTravelMove builds a non-extruding XY move at the given feedrate.
func NewTravelMove(x, y, feedrate float64) Command {
	return Command{
		Kind: KindMove,
		Raw:  fmt.Sprintf("G1 X%.3f Y%.3f F%.0f", x, y, feedrate),
		X:    x, Y: y, F: feedrate,
		HasX: true, HasY: true, HasF: true,
		FromTool: -1, ToTool: -1,
	}
}

// NewZMove builds a non-extruding Z move at the given feedrate.
func NewZMove(z, feedrate float64) Command {
	return Command{
		Kind: KindMove,
		Raw:  fmt.Sprintf("G1 Z%.3f F%.0f", z, feedrate),
		Z:    z, F: feedrate,
		HasZ: true, HasF: true,
		FromTool: -1, ToTool: -1,
	}
}

// NewFeedrate builds a bare feedrate restore move.
func NewFeedrate(feedrate float64) Command {
	return Command{
		Kind: KindMove,
		Raw:  fmt.Sprintf("G1 F%.0f", feedrate),
		F:    feedrate,
		HasF: true,
		FromTool: -1, ToTool: -1,
	}
}

// NewExtrudeMove builds an extruding XY move (prime tower perimeters).
func NewExtrudeMove(x, y, e float64) Command {
	return Command{
		Kind: KindMove,
		Raw:  fmt.Sprintf("G1 X%.3f Y%.3f E%.4f", x, y, e),
		X:    x, Y: y, E: e,
		HasX: true, HasY: true, HasE: true,
		FromTool: -1, ToTool: -1,
	}
}

// NewToolSelect builds a synthesized tool-select command.
func NewToolSelect(from, to int) Command {
	return Command{
		Kind:     KindToolSelect,
		Raw:      fmt.Sprintf("T%d", to),
		FromTool: from,
		ToTool:   to,
	}
}

// NewRaw builds a synthesized pass-through command from formatted text.
func NewRaw(format string, args ...interface{}) Command {
	return Command{Kind: KindRaw, Raw: fmt.Sprintf(format, args...), FromTool: -1, ToTool: -1}
}
