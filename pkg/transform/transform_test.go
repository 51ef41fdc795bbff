// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package transform

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcode-layerbatch/pkg/config"
	"gcode-layerbatch/pkg/errors"
)

// alternatingFile renders a marker-style print of n layers, material 0
// on odd and material 1 on even layers, with bracketed tool changes.
// Each layer's extrusion line is unique so conservation can be checked
// as a multiset.
func alternatingFile(n int) ([]byte, []string) {
	var lines []string
	add := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("; test print")
	add("M104 S220")
	add("T0")
	add("G90")
	tool := 0
	var extrudes []string
	for l := 1; l <= n; l++ {
		mat := (l + 1) % 2
		if mat != tool {
			add("M620 S%dA", mat)
			add("T%d", mat)
			add("M621 S%dA", mat)
			tool = mat
		}
		x := 10.0
		if mat == 1 {
			x = 80.0
		}
		add("; layer num/total_layer_count: %d/%d", l, n)
		add("G1 Z%.2f F600", float64(l)*0.2)
		add("G1 X%.1f Y10.0 F9000", x)
		e := fmt.Sprintf("G1 X%.1f Y10.0 E%d.25", x+10, l)
		add("%s", e)
		extrudes = append(extrudes, e)
	}
	add("M104 S0")
	add("M84")
	return []byte(strings.Join(lines, "\n") + "\n"), extrudes
}

func TestAlternatingMaterialsSummary(t *testing.T) {
	cfg := config.Default()
	cfg.MaxBatchLayers = 10
	in, _ := alternatingFile(128)

	out, sum, err := RunBytes(in, &cfg)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	assert.Equal(t, 128, sum.Layers)
	assert.Equal(t, 128, sum.Segments)
	assert.Equal(t, 26, sum.BatchCount)
	assert.Equal(t, 127, sum.OriginalToolChanges)
	assert.LessOrEqual(t, sum.ResultingToolChanges, 25)
	assert.Less(t, sum.ResultingToolChanges, sum.OriginalToolChanges)
}

func TestConservation(t *testing.T) {
	cfg := config.Default()
	in, extrudes := alternatingFile(40)

	out, _, err := RunBytes(in, &cfg)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, line := range strings.Split(string(out), "\n") {
		counts[line]++
	}
	for _, e := range extrudes {
		assert.Equal(t, 1, counts[e], "extrusion line %q must appear exactly once", e)
	}
	// Header and footer survive verbatim.
	assert.Equal(t, 1, counts["M104 S220"])
	assert.Equal(t, 1, counts["M104 S0"])
	assert.Equal(t, 1, counts["M84"])
}

func TestHeaderAndFooterPosition(t *testing.T) {
	cfg := config.Default()
	in, _ := alternatingFile(12)

	out, _, err := RunBytes(in, &cfg)
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "; test print\n"), "header must open the stream")
	trimmed := strings.TrimRight(text, "\n")
	assert.True(t, strings.HasSuffix(trimmed, "M84"), "footer must close the stream")
}

func TestDeterminism(t *testing.T) {
	cfg := config.Default()
	in, _ := alternatingFile(64)

	a, _, err := RunBytes(in, &cfg)
	require.NoError(t, err)
	b, _, err := RunBytes(in, &cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical input and configuration must give byte-identical output")
}

func TestHopEndsAtNextSegmentStart(t *testing.T) {
	cfg := config.Default()
	in, _ := alternatingFile(24)

	out, _, err := RunBytes(in, &cfg)
	require.NoError(t, err)

	// The injected hop before a batch of material 1 must land on that
	// object's first XY (X80 Y10) before its commands resume.
	lines := strings.Split(string(out), "\n")
	found := false
	for i := 0; i+2 < len(lines); i++ {
		if strings.HasPrefix(lines[i], "G1 Z") && strings.HasSuffix(lines[i], "F600") &&
			lines[i+1] == "G1 X80.000 Y10.000 F9000" {
			found = true
			break
		}
	}
	assert.True(t, found, "expected an up-travel hop targeting material 1's start")
}

func TestReplayedToolChangesAreCaptured(t *testing.T) {
	cfg := config.Default()
	in, _ := alternatingFile(24)

	out, sum, err := RunBytes(in, &cfg)
	require.NoError(t, err)

	// Both pairs occur in the input, so no fallback is synthesized.
	assert.Empty(t, sum.Warnings)
	assert.Contains(t, string(out), "M620 S1A\nT1\nM621 S1A")
}

func TestPrimeTowersStayLevel(t *testing.T) {
	cfg := config.Default()
	cfg.PrimeTowers = true
	in, _ := alternatingFile(40)

	out, _, err := RunBytes(in, &cfg)
	require.NoError(t, err)

	// Tower layer counts per material never drift apart by more than one.
	count0 := strings.Count(string(out), "; prime tower T0 layer")
	count1 := strings.Count(string(out), "; prime tower T1 layer")
	assert.InDelta(t, count0, count1, 1)
	assert.Greater(t, count0+count1, 0)
}

// lineZ extracts the Z word of a rendered move line.
func lineZ(line string) (float64, bool) {
	if !strings.HasPrefix(line, "G1 ") && !strings.HasPrefix(line, "G0 ") {
		return 0, false
	}
	for _, f := range strings.Fields(line) {
		if strings.HasPrefix(f, "Z") {
			if z, err := strconv.ParseFloat(f[1:], 64); err == nil {
				return z, true
			}
		}
	}
	return 0, false
}

func TestTowerEntryHopsAboveSurface(t *testing.T) {
	cfg := config.Default()
	cfg.PrimeTowers = true
	in, _ := alternatingFile(40)

	out, _, err := RunBytes(in, &cfg)
	require.NoError(t, err)

	// Every tower layer opens with a raise at or above every Z reached
	// so far; the nozzle never crosses the build area below the
	// printed surface on its way to the tower.
	lines := strings.Split(string(out), "\n")
	maxSeen := 0.0
	towers := 0
	for i, line := range lines {
		if strings.HasPrefix(line, "; prime tower") {
			require.Less(t, i+1, len(lines))
			z, ok := lineZ(lines[i+1])
			require.True(t, ok, "tower layer must open with a raise, got %q", lines[i+1])
			assert.GreaterOrEqual(t, z, maxSeen, "tower approach dips below printed surface")
			towers++
		}
		if z, ok := lineZ(line); ok && z > maxSeen {
			maxSeen = z
		}
	}
	assert.Greater(t, towers, 0)
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := config.Default()
	cfg.MaxBatchLayers = 0
	in, _ := alternatingFile(8)

	out, _, err := RunBytes(in, &cfg)
	require.Error(t, err)
	assert.Nil(t, out, "no partial output on error")
	assert.True(t, errors.Is(err, errors.ErrConfigRange))
}

func TestEmptyInput(t *testing.T) {
	cfg := config.Default()
	out, sum, err := RunBytes(nil, &cfg)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, sum.BatchCount)
}

func TestSingleMaterialPassesThrough(t *testing.T) {
	var lines []string
	lines = append(lines, "T0")
	for l := 1; l <= 6; l++ {
		lines = append(lines, fmt.Sprintf("; layer num/total_layer_count: %d/6", l))
		lines = append(lines, fmt.Sprintf("G1 Z%.2f F600", float64(l)*0.2))
		lines = append(lines, "G1 X10.0 Y10.0 F9000")
		lines = append(lines, fmt.Sprintf("G1 X20.0 Y10.0 E%d.5", l))
	}
	in := []byte(strings.Join(lines, "\n") + "\n")

	cfg := config.Default()
	out, sum, err := RunBytes(in, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.ResultingToolChanges)
	assert.Equal(t, string(in), string(out), "single-material input needs no rearrangement")
}