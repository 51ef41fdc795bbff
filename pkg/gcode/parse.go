// G-code line parsing
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"strconv"
	"strings"

	"gcode-layerbatch/pkg/pool"
)

// ParseLine parses a single G-code line into a Command. The original
// text is preserved verbatim in Raw so the generator can re-emit it
// byte-identically. ParseLine never fails: lines that are not moves or
// tool selects come back as KindRaw (or KindComment).
func ParseLine(line string) Command {
	trimmed := strings.TrimSpace(line)
	cmd := Command{Kind: KindRaw, Raw: line, FromTool: -1, ToTool: -1}

	if trimmed == "" {
		return cmd
	}
	if strings.HasPrefix(trimmed, ";") {
		cmd.Kind = KindComment
		return cmd
	}

	// Strip the trailing comment for word parsing only; Raw keeps it.
	code := trimmed
	if idx := strings.IndexByte(code, ';'); idx >= 0 {
		code = strings.TrimSpace(code[:idx])
		if code == "" {
			cmd.Kind = KindComment
			return cmd
		}
	}

	fields := strings.Fields(code)
	name := strings.ToUpper(fields[0])

	// Bare tool select: T0, T1, ...
	if len(fields) == 1 && len(name) >= 2 && name[0] == 'T' {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 0 {
			cmd.Kind = KindToolSelect
			cmd.ToTool = n
			return cmd
		}
	}

	if name != "G0" && name != "G1" {
		return cmd
	}

	args := pool.GetArgsMap()
	defer pool.PutArgsMap(args)
	for _, f := range fields[1:] {
		if len(f) < 2 {
			continue
		}
		args[strings.ToUpper(f[:1])] = f[1:]
	}

	cmd.Kind = KindMove
	cmd.X, cmd.HasX = parseWord(args, "X")
	cmd.Y, cmd.HasY = parseWord(args, "Y")
	cmd.Z, cmd.HasZ = parseWord(args, "Z")
	cmd.E, cmd.HasE = parseWord(args, "E")
	cmd.F, cmd.HasF = parseWord(args, "F")
	return cmd
}

func parseWord(args map[string]string, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
