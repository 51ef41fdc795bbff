// layerbatch rewrites multi-material G-code so that consecutive
// same-material layers print together, cutting tool changes while
// preserving every original command.
//
// Usage:
//
//	layerbatch -in print.gcode [options]
//
// Options:
//
//	-in string      Input G-code file (required)
//	-out string     Output file (default: <in>.batched.gcode)
//	-config string  YAML configuration file (optional)
//	-max-layers int Override max layers per batch
//	-strictness string  Collision strictness: causal or forward
//	-towers         Enable prime towers at tool changes
//	-v              Enable debug logging
//
// Examples:
//
//	# Batch with defaults (max 10 layers per batch)
//	layerbatch -in print.gcode
//
//	# Tighter batches, forward collision checking
//	layerbatch -in print.gcode -max-layers 5 -strictness forward
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gcode-layerbatch/pkg/config"
	"gcode-layerbatch/pkg/errors"
	"gcode-layerbatch/pkg/log"
	"gcode-layerbatch/pkg/transform"
)

// Exit codes: 2 usage, 3 configuration, 4 parse, 5 scheduling, 1 other.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errors.ErrConfigRange):
		return 3
	case errors.Is(err, errors.ErrParse), errors.Is(err, errors.ErrMalformedSegment):
		return 4
	case errors.Is(err, errors.ErrUnsafeSingleton):
		return 5
	}
	return 1
}

func main() {
	inFile := flag.String("in", "", "Input G-code file (required)")
	outFile := flag.String("out", "", "Output file (default: <in>.batched.gcode)")
	configFile := flag.String("config", "", "YAML configuration file")
	maxLayers := flag.Int("max-layers", 0, "Override max layers per batch")
	strictness := flag.String("strictness", "", "Collision strictness: causal or forward")
	towers := flag.Bool("towers", false, "Enable prime towers at tool changes")
	verbose := flag.Bool("v", false, "Enable debug logging")

	flag.Parse()

	if *inFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -in is required\n")
		flag.Usage()
		os.Exit(2)
	}

	if *verbose {
		base := log.New("layerbatch")
		base.SetLevel(log.DEBUG)
		log.SetDefaultLogger(base)
	}
	logger := log.GetLogger("main")

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			logger.Error("%v", err)
			os.Exit(3)
		}
		cfg = loaded
	}
	if *maxLayers > 0 {
		cfg.MaxBatchLayers = *maxLayers
	}
	if *strictness != "" {
		cfg.Strictness = config.Strictness(*strictness)
	}
	if *towers {
		cfg.PrimeTowers = true
	}

	out, sum, err := transform.RunFile(*inFile, &cfg)
	if err != nil {
		logger.Error("transform failed: %v", err)
		os.Exit(exitCode(err))
	}

	dst := *outFile
	if dst == "" {
		dst = strings.TrimSuffix(*inFile, ".gcode") + ".batched.gcode"
	}
	if err := os.WriteFile(dst, out, 0644); err != nil {
		logger.Error("writing %s: %v", dst, err)
		os.Exit(1)
	}

	fmt.Printf("%s -> %s\n", *inFile, dst)
	fmt.Printf("  layers:       %d\n", sum.Layers)
	fmt.Printf("  segments:     %d\n", sum.Segments)
	fmt.Printf("  batches:      %d\n", sum.BatchCount)
	fmt.Printf("  tool changes: %d (was %d)\n", sum.ResultingToolChanges, sum.OriginalToolChanges)
	for _, w := range sum.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
