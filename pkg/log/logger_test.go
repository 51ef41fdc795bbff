// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger(prefix string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(prefix)
	l.SetWriter(&buf)
	l.SetColorize(false)
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger("test")

	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("DEBUG message should be filtered at INFO level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("INFO message should pass at INFO level")
	}

	buf.Reset()
	l.SetLevel(DEBUG)
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("DEBUG message should pass at DEBUG level")
	}
}

func TestTextFormat(t *testing.T) {
	l, buf := newTestLogger("scheduler")
	l.InfoFields("batch closed", Fields{"material": 1, "layers": 10})

	out := buf.String()
	if !strings.Contains(out, "[INFO ]") {
		t.Errorf("missing level tag: %q", out)
	}
	if !strings.Contains(out, "scheduler: batch closed") {
		t.Errorf("missing prefix and message: %q", out)
	}
	// Fields print sorted by key.
	if !strings.Contains(out, "{layers=10, material=1}") {
		t.Errorf("fields not formatted as expected: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	l, buf := newTestLogger("parser")
	l.SetFormat(FormatJSON)
	l.WarnFields("odd input", Fields{"line": 12})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["logger"] != "parser" {
		t.Errorf("logger = %v, want parser", entry["logger"])
	}
	if entry["message"] != "odd input" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warning", WARN},
		{"error", ERROR},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithPrefixSharesSettings(t *testing.T) {
	l, buf := newTestLogger("root")
	l.SetLevel(DEBUG)

	child := l.WithPrefix("child")
	child.Debug("from child")
	if !strings.Contains(buf.String(), "child: from child") {
		t.Errorf("derived logger should write to the parent's writer: %q", buf.String())
	}
}

func TestFormattedArgs(t *testing.T) {
	l, buf := newTestLogger("fmt")
	l.Info("layer %d of %d", 3, 128)
	if !strings.Contains(buf.String(), "layer 3 of 128") {
		t.Errorf("args not formatted: %q", buf.String())
	}
}
