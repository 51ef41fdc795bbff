// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"gcode-layerbatch/pkg/errors"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration must validate: %v", err)
	}
	if cfg.MaxBatchLayers != 10 {
		t.Errorf("default max_batch_layers = %d, want 10", cfg.MaxBatchLayers)
	}
	if cfg.Strictness != StrictCausal {
		t.Errorf("default strictness = %q, want causal", cfg.Strictness)
	}
}

func TestValidateRejectsRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative margin", func(c *Config) { c.CollisionMargin = -0.1 }},
		{"zero batch cap", func(c *Config) { c.MaxBatchLayers = 0 }},
		{"zero tip", func(c *Config) { c.NozzleTipDiameter = 0 }},
		{"flat cone", func(c *Config) { c.ConeHalfAngle = 0 }},
		{"right-angle cone", func(c *Config) { c.ConeHalfAngle = 90 }},
		{"zero cone height", func(c *Config) { c.ConeHeight = 0 }},
		{"negative hop", func(c *Config) { c.ZHopHeight = -1 }},
		{"zero cell size", func(c *Config) { c.CellSize = 0 }},
		{"bad strictness", func(c *Config) { c.Strictness = "psychic" }},
		{"tower no size", func(c *Config) { c.PrimeTowers = true; c.Tower.Size = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, errors.ErrConfigRange) {
				t.Errorf("error code = %v, want CONFIG_RANGE", err)
			}
		})
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layerbatch.yaml")
	data := []byte("max_batch_layers: 5\nstrictness: forward\nprime_towers: true\ntower:\n  purge_volume: 45\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.MaxBatchLayers != 5 {
		t.Errorf("max_batch_layers = %d, want 5", cfg.MaxBatchLayers)
	}
	if cfg.Strictness != StrictForward {
		t.Errorf("strictness = %q, want forward", cfg.Strictness)
	}
	if !cfg.PrimeTowers {
		t.Error("prime_towers should be enabled")
	}
	if cfg.Tower.PurgeVolume != 45 {
		t.Errorf("tower.purge_volume = %v, want 45", cfg.Tower.PurgeVolume)
	}
	// Untouched options keep their defaults.
	if cfg.CellSize != 0.5 {
		t.Errorf("cell_size = %v, want default 0.5", cfg.CellSize)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layerbatch.yaml")
	if err := os.WriteFile(path, []byte("max_batch_layer: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("misspelled option must be rejected, not silently ignored")
	}
}
