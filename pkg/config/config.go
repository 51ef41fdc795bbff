// Configuration surface for the layer batching transformer
//
// The core consumes Config as an immutable value; loading and flag
// handling belong to the driver in cmd/layerbatch.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"gcode-layerbatch/pkg/errors"
)

// Strictness selects which deposited geometry collision queries see.
type Strictness string

const (
	// StrictCausal queries only geometry already committed in schedule
	// order (the default).
	StrictCausal Strictness = "causal"

	// StrictForward additionally treats segments queued in open, not yet
	// emitted batches of the other material as hazards.
	StrictForward Strictness = "forward"
)

// TowerConfig describes per-material purge tower geometry.
type TowerConfig struct {
	// Size is the side length of the square tower in mm.
	Size float64 `yaml:"size"`

	// Spacing is the gap between adjacent material towers in mm.
	Spacing float64 `yaml:"spacing"`

	// PositionX, PositionY locate the first tower's corner.
	PositionX float64 `yaml:"position_x"`
	PositionY float64 `yaml:"position_y"`

	// PurgeVolume is the purge amount per tool change in mm^3.
	PurgeVolume float64 `yaml:"purge_volume"`

	// LayerHeight is the tower layer increment in mm.
	LayerHeight float64 `yaml:"layer_height"`

	// ExtrusionWidth is the tower perimeter extrusion width in mm.
	ExtrusionWidth float64 `yaml:"extrusion_width"`
}

// Config is the full configuration surface of the transformer.
type Config struct {
	// ZHopHeight is the protective lift above the clearance height in mm.
	ZHopHeight float64 `yaml:"zhop_height"`

	// ZHopFeedrate and TravelFeedrate are the injected move speeds in
	// mm/min.
	ZHopFeedrate   float64 `yaml:"zhop_feedrate"`
	TravelFeedrate float64 `yaml:"travel_feedrate"`

	// CollisionMargin is added to the nozzle radius in every query, mm.
	CollisionMargin float64 `yaml:"collision_margin"`

	// Nozzle geometry.
	NozzleTipDiameter float64 `yaml:"nozzle_tip_diameter"`
	ConeHalfAngle     float64 `yaml:"cone_half_angle"` // degrees
	ConeHeight        float64 `yaml:"cone_height"`     // mm

	// MaxBatchLayers bounds how many consecutive layers one batch may
	// cover.
	MaxBatchLayers int `yaml:"max_batch_layers"`

	// CellSize is the occupancy grid quantization in mm.
	CellSize float64 `yaml:"cell_size"`

	// PrimeTowers enables per-material purge towers at tool changes.
	PrimeTowers bool        `yaml:"prime_towers"`
	Tower       TowerConfig `yaml:"tower"`

	// Strictness selects causal-only or forward collision checking.
	Strictness Strictness `yaml:"strictness"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		ZHopHeight:        0.5,
		ZHopFeedrate:      600,
		TravelFeedrate:    9000,
		CollisionMargin:   1.0,
		NozzleTipDiameter: 0.4,
		ConeHalfAngle:     30,
		ConeHeight:        10,
		MaxBatchLayers:    10,
		CellSize:          0.5,
		PrimeTowers:       false,
		Tower: TowerConfig{
			Size:           10,
			Spacing:        5,
			PositionX:      200,
			PositionY:      200,
			PurgeVolume:    30,
			LayerHeight:    0.2,
			ExtrusionWidth: 0.4,
		},
		Strictness: StrictCausal,
	}
}

// Validate rejects out-of-range values. It runs once at entry, before
// scheduling starts; any error here is fatal.
func (c Config) Validate() error {
	if c.CollisionMargin < 0 {
		return errors.ConfigRangeError("collision_margin", "must not be negative")
	}
	if c.MaxBatchLayers <= 0 {
		return errors.ConfigRangeError("max_batch_layers", "must be at least 1")
	}
	if c.NozzleTipDiameter <= 0 {
		return errors.ConfigRangeError("nozzle_tip_diameter", "must be positive")
	}
	if c.ConeHalfAngle <= 0 || c.ConeHalfAngle >= 90 {
		return errors.ConfigRangeError("cone_half_angle", "must be in (0, 90) degrees")
	}
	if c.ConeHeight <= 0 {
		return errors.ConfigRangeError("cone_height", "must be positive")
	}
	if c.ZHopHeight < 0 {
		return errors.ConfigRangeError("zhop_height", "must not be negative")
	}
	if c.ZHopFeedrate <= 0 {
		return errors.ConfigRangeError("zhop_feedrate", "must be positive")
	}
	if c.TravelFeedrate <= 0 {
		return errors.ConfigRangeError("travel_feedrate", "must be positive")
	}
	if c.CellSize <= 0 {
		return errors.ConfigRangeError("cell_size", "must be positive")
	}
	if c.Strictness != StrictCausal && c.Strictness != StrictForward {
		return errors.ConfigRangeError("strictness",
			fmt.Sprintf("unknown mode %q (want %q or %q)", c.Strictness, StrictCausal, StrictForward))
	}
	if c.PrimeTowers {
		if c.Tower.Size <= 0 {
			return errors.ConfigRangeError("tower.size", "must be positive")
		}
		if c.Tower.LayerHeight <= 0 {
			return errors.ConfigRangeError("tower.layer_height", "must be positive")
		}
		if c.Tower.ExtrusionWidth <= 0 {
			return errors.ConfigRangeError("tower.extrusion_width", "must be positive")
		}
		if c.Tower.PurgeVolume < 0 {
			return errors.ConfigRangeError("tower.purge_volume", "must not be negative")
		}
	}
	return nil
}

// LoadFile reads a YAML configuration file over the defaults. Options
// absent from the file keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}
