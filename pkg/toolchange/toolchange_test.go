// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package toolchange

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcode-layerbatch/pkg/config"
	"gcode-layerbatch/pkg/gcode"
	"gcode-layerbatch/pkg/segment"
)

func testDoc() *segment.Document {
	return &segment.Document{
		Segments: []*segment.ObjectSegment{
			{Layer: 1, Material: 0},
			{Layer: 1, Material: 1},
		},
		ToolChanges: map[segment.ToolPair][]gcode.Command{
			{From: 0, To: 1}: {
				gcode.ParseLine("M620 S1A"),
				gcode.ParseLine("T1"),
				gcode.ParseLine("M621 S1A"),
			},
		},
	}
}

func TestChangeToReplaysCapturedSequence(t *testing.T) {
	cfg := config.Default()
	s := NewSynchronizer(&cfg, testDoc())

	seq := s.ChangeTo(0, 1)
	require.Len(t, seq, 3)
	assert.Equal(t, "M620 S1A", seq[0].Text())
	assert.Empty(t, s.Warnings())
	assert.Equal(t, 1, s.Emitted())
}

func TestChangeToSynthesizesFallback(t *testing.T) {
	cfg := config.Default()
	s := NewSynchronizer(&cfg, testDoc())

	seq := s.ChangeTo(1, 0)
	require.NotEmpty(t, seq)

	joined := make([]string, len(seq))
	for i, c := range seq {
		joined[i] = c.Text()
	}
	text := strings.Join(joined, "\n")
	assert.Contains(t, text, "T0")
	assert.Contains(t, text, "G4")

	require.Len(t, s.Warnings(), 1)
	assert.Contains(t, s.Warnings()[0], "T1 -> T0")
}

func TestTowerLayersStayLevel(t *testing.T) {
	cfg := config.Default()
	cfg.PrimeTowers = true
	s := NewSynchronizer(&cfg, testDoc())

	require.NotNil(t, s.TowerLayer(0, 0, 0))
	assert.Equal(t, 1, s.TowerCount(0))

	// Material 0 is now a layer ahead; it must wait for material 1.
	assert.Nil(t, s.TowerLayer(0, 0, 0))
	assert.Equal(t, 1, s.TowerCount(0))

	require.NotNil(t, s.TowerLayer(1, 0, 0))
	require.NotNil(t, s.TowerLayer(0, 0, 0))
	assert.Equal(t, 2, s.TowerCount(0))
	assert.Equal(t, 1, s.TowerCount(1))
}

func TestTowerLayerDisabled(t *testing.T) {
	cfg := config.Default()
	s := NewSynchronizer(&cfg, testDoc())
	assert.Nil(t, s.TowerLayer(0, 0, 0))
}

func TestTowerLayerContent(t *testing.T) {
	cfg := config.Default()
	cfg.PrimeTowers = true
	s := NewSynchronizer(&cfg, testDoc())

	cmds := s.TowerLayer(1, 12.345, 0)
	require.NotEmpty(t, cmds)

	var extruded float64
	sawReset, sawRestore := false, false
	for _, c := range cmds {
		if c.Text() == "G92 E0" {
			sawReset = true
		}
		if strings.HasPrefix(c.Text(), "G92 E12.345") {
			sawRestore = true
		}
		if c.IsExtruding() && c.E > extruded {
			extruded = c.E
		}
	}
	assert.True(t, sawReset, "tower must zero E before purging")
	assert.True(t, sawRestore, "tower must restore the stream's E position")
	assert.Greater(t, extruded, 0.0, "tower must actually purge material")

	assert.Equal(t, cfg.Tower.LayerHeight, towerZ(t, cmds))
}

// towerZ returns the height the purge is deposited at: the lowest Z
// move in the sequence, below the approach hop.
func towerZ(t *testing.T, cmds []gcode.Command) float64 {
	t.Helper()
	z, found := 0.0, false
	for _, c := range cmds {
		if c.Kind == gcode.KindMove && c.HasZ {
			if !found || c.Z < z {
				z, found = c.Z, true
			}
		}
	}
	if !found {
		t.Fatal("tower layer has no Z move")
	}
	return z
}

func TestTowerEntryClearsPrintedSurface(t *testing.T) {
	cfg := config.Default()
	cfg.PrimeTowers = true
	s := NewSynchronizer(&cfg, testDoc())

	cmds := s.TowerLayer(1, 0, 1.8)
	require.NotEmpty(t, cmds)

	// The approach must raise above the printed surface, travel at
	// that height to the tower, then lower; no extrusion before the
	// lowering move.
	assert.Equal(t, "G1 Z2.300 F600", cmds[1].Text())
	assert.Equal(t, "G1 X210.000 Y195.000 F9000", cmds[2].Text())
	assert.Equal(t, "G1 Z0.200 F600", cmds[3].Text())
	for _, c := range cmds[:4] {
		assert.False(t, c.IsExtruding(), "approach must not extrude: %s", c.Text())
	}
}

func TestTowerHeightAdvances(t *testing.T) {
	cfg := config.Default()
	cfg.PrimeTowers = true
	s := NewSynchronizer(&cfg, testDoc())

	first := s.TowerLayer(0, 0, 0)
	s.TowerLayer(1, 0, 0)
	second := s.TowerLayer(0, 0, 0)

	assert.Equal(t, cfg.Tower.LayerHeight, towerZ(t, first))
	assert.Equal(t, 2*cfg.Tower.LayerHeight, towerZ(t, second))
}
