// G-code parser producing the segment model
//
// The parser resolves tool-select and layer-boundary markers into
// per-layer, per-material ObjectSegments. Layer boundaries come from
// explicit slicer layer comments when the file has them, otherwise from
// upward Z moves confirmed by a following extruding move (so mid-layer
// z-hops do not split layers). Tool-change sequences are captured as
// units and cached per (from,to) pair on first occurrence.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package segment

import (
	"os"
	"regexp"
	"strings"

	"github.com/edsrzf/mmap-go"

	"gcode-layerbatch/pkg/gcode"
)

const zEps = 1e-6

// Layer markers of the slicers this tool meets in practice: Bambu/Orca
// ("; layer num/total_layer_count: N/M"), Cura (";LAYER:N") and
// PrusaSlicer (";LAYER_CHANGE").
var layerMarkerRe = regexp.MustCompile(`^;\s*(layer num/total_layer_count:|LAYER:-?\d+|LAYER_CHANGE)`)

func isLayerMarker(raw string) bool {
	return layerMarkerRe.MatchString(strings.TrimSpace(raw))
}

// firstWord returns the upper-cased command word of a line, comment and
// whitespace stripped.
func firstWord(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return strings.ToUpper(s)
}

// ParseFile memory-maps a G-code file and parses it. Multi-material
// prints run to hundreds of MB; the mapping avoids a second in-memory
// copy of the raw bytes during parsing.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return Parse(nil), nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	return Parse(m), nil
}

// Parse parses raw G-code bytes into a Document. Line content is copied
// out of the input buffer, so the buffer may be unmapped afterwards.
func Parse(data []byte) *Document {
	var lines []string
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			end := i
			if end > start && data[end-1] == '\r' {
				end--
			}
			lines = append(lines, string(data[start:end]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return ParseLines(lines)
}

// ParseLines parses pre-split G-code lines into a Document.
func ParseLines(lines []string) *Document {
	p := newParser()
	for _, line := range lines {
		if !p.commentStyle && isLayerMarker(line) {
			p.commentStyle = true
		}
	}
	for _, line := range lines {
		p.feed(gcode.ParseLine(line))
	}
	p.finish()
	return p.doc
}

type parser struct {
	doc          *Document
	commentStyle bool

	headerDone bool
	layer      int
	layerZ     float64
	zSet       bool

	curTool   int
	toolKnown bool

	cur       []gcode.Command
	layerSegs []*ObjectSegment

	// Unconfirmed new layer (Z-style only): commands since the last
	// upward Z move, pending an extruding move that confirms the layer.
	pending  []gcode.Command
	pendingZ float64

	// Tool-change capture state.
	capActive    bool
	capBracketed bool
	capFrom      int
	capTo        int
	capBuf       []gcode.Command

	nextID int
}

func newParser() *parser {
	return &parser{
		doc: &Document{
			ToolChanges: make(map[ToolPair][]gcode.Command),
		},
		capTo: -1,
	}
}

func (p *parser) feed(cmd gcode.Command) {
	if p.capActive {
		p.feedCapture(cmd)
		return
	}

	if p.commentStyle && isLayerMarker(cmd.Raw) {
		p.startMarkerLayer(cmd)
		return
	}

	if !p.headerDone && p.commentStyle {
		if cmd.Kind == gcode.KindToolSelect {
			p.curTool = cmd.ToTool
			p.toolKnown = true
		}
		p.doc.Header = append(p.doc.Header, cmd)
		return
	}

	// Tool-change capture triggers. Suppressed in the Z-style header
	// region: initial tool selection there is passthrough, not a change.
	if p.headerDone || p.commentStyle {
		if cmd.Kind == gcode.KindToolSelect {
			p.beginCapture(cmd, true)
			return
		}
		if w := firstWord(cmd.Raw); w == "M620" {
			p.beginCapture(cmd, false)
			return
		}
	} else if cmd.Kind == gcode.KindToolSelect {
		p.curTool = cmd.ToTool
		p.toolKnown = true
	}

	if p.commentStyle {
		p.feedComment(cmd)
	} else {
		p.feedZ(cmd)
	}
}

// feedComment handles body commands when explicit layer markers exist.
func (p *parser) feedComment(cmd gcode.Command) {
	if cmd.Kind == gcode.KindMove && cmd.HasZ && !p.zSet {
		p.layerZ = cmd.Z
		p.zSet = true
	}
	p.cur = append(p.cur, cmd)
}

// feedZ handles body commands when layers are inferred from Z motion.
func (p *parser) feedZ(cmd gcode.Command) {
	if cmd.Kind == gcode.KindMove && cmd.HasZ {
		if cmd.Z > p.layerZ+zEps {
			p.pending = append(p.pending, cmd)
			p.pendingZ = cmd.Z
			return
		}
		if len(p.pending) > 0 {
			// The raise came back down before any extrusion: a z-hop,
			// not a layer change.
			p.flushPending()
			p.appendCmd(cmd)
			return
		}
	}

	if cmd.IsExtruding() && len(p.pending) > 0 {
		p.confirmLayer(cmd)
		return
	}

	if len(p.pending) > 0 {
		p.pending = append(p.pending, cmd)
		return
	}
	p.appendCmd(cmd)
}

// appendCmd routes a command to the header or the current segment.
func (p *parser) appendCmd(cmd gcode.Command) {
	if !p.headerDone {
		p.doc.Header = append(p.doc.Header, cmd)
		return
	}
	p.cur = append(p.cur, cmd)
}

func (p *parser) flushPending() {
	for _, c := range p.pending {
		p.appendCmd(c)
	}
	p.pending = nil
}

// confirmLayer commits the pending upward Z move as a real layer
// boundary; the buffered commands and the confirming extrusion open the
// new layer's first segment.
func (p *parser) confirmLayer(cmd gcode.Command) {
	if p.headerDone {
		p.closeLayer()
	} else {
		p.doc.InitialTool, p.doc.InitialToolKnown = p.curTool, p.toolKnown
	}
	p.headerDone = true
	p.layer++
	p.layerZ = p.pendingZ
	p.zSet = true
	p.cur = append(p.pending, cmd)
	p.pending = nil
}

// startMarkerLayer begins a new layer at an explicit marker comment.
// The marker line itself belongs to the new layer's first segment.
func (p *parser) startMarkerLayer(cmd gcode.Command) {
	if p.headerDone {
		p.closeLayer()
	} else {
		p.doc.InitialTool, p.doc.InitialToolKnown = p.curTool, p.toolKnown
	}
	p.headerDone = true
	p.layer++
	p.zSet = false
	p.cur = []gcode.Command{cmd}
}

func (p *parser) beginCapture(cmd gcode.Command, bare bool) {
	p.capActive = true
	p.capBracketed = !bare
	p.capFrom = p.curTool
	p.capTo = -1
	if cmd.Kind == gcode.KindToolSelect {
		p.capTo = cmd.ToTool
	}
	p.capBuf = []gcode.Command{cmd}
}

// Commands that continue a bare tool-change capture: heating, fans,
// dwell, extrusion reset and the change bracket codes themselves.
var bareCaptureWords = map[string]bool{
	"M104": true, "M109": true, "M106": true, "M107": true,
	"M400": true, "G4": true, "G92": true,
	"M620": true, "M621": true,
}

func (p *parser) feedCapture(cmd gcode.Command) {
	if p.commentStyle && isLayerMarker(cmd.Raw) {
		p.endCapture()
		p.feed(cmd)
		return
	}

	if cmd.Kind == gcode.KindToolSelect {
		p.capTo = cmd.ToTool
		p.capBuf = append(p.capBuf, cmd)
		return
	}

	w := firstWord(cmd.Raw)

	if p.capBracketed {
		if cmd.IsExtruding() && cmd.HasX && cmd.HasY {
			// A print move: the change sequence is over even without
			// its closing bracket.
			p.endCapture()
			p.feed(cmd)
			return
		}
		p.capBuf = append(p.capBuf, cmd)
		if w == "M621" {
			p.endCapture()
		}
		return
	}

	if w == "M620" {
		p.capBracketed = true
		p.capBuf = append(p.capBuf, cmd)
		return
	}
	if bareCaptureWords[w] {
		p.capBuf = append(p.capBuf, cmd)
		return
	}
	p.endCapture()
	p.feed(cmd)
}

func (p *parser) endCapture() {
	p.capActive = false
	buf := p.capBuf
	p.capBuf = nil

	if p.capTo < 0 || (p.toolKnown && p.capTo == p.capFrom) {
		// Not a real change: the commands stay in the stream.
		for _, c := range buf {
			p.appendCmd(c)
		}
		return
	}

	if !p.toolKnown {
		// First tool selection in the body: not a change from any
		// known tool, so nothing is cached or counted, but the
		// sequence still marks a segment boundary and stays in the
		// stream at the head of the new material's segment.
		p.closeSegment()
		p.curTool = p.capTo
		p.toolKnown = true
		for _, c := range buf {
			p.appendCmd(c)
		}
		return
	}

	p.doc.OriginalToolChanges++
	pair := ToolPair{From: p.capFrom, To: p.capTo}
	if _, ok := p.doc.ToolChanges[pair]; !ok {
		p.doc.ToolChanges[pair] = buf
	}

	// Segment boundary: commands before the change belong to the old
	// material, commands after it to the new one.
	p.closeSegment()
	p.curTool = p.capTo
	p.toolKnown = true
}

// closeSegment moves the accumulated commands into the current layer's
// staging list under the current material.
func (p *parser) closeSegment() {
	if len(p.cur) == 0 {
		return
	}
	p.layerSegs = append(p.layerSegs, &ObjectSegment{
		Layer:    p.layer,
		Material: p.curTool,
		Commands: p.cur,
	})
	p.cur = nil
}

// closeLayer merges the layer's staged segments so that each material
// present in the layer yields exactly one segment, then appends them to
// the document in file order. Staged runs with no planar print move
// (a layer marker cut off by an immediately following tool change, a
// stray temperature block, a stationary purge) do not become segments
// of their own; their commands fold into the layer's next printing
// segment.
func (p *parser) closeLayer() {
	p.closeSegment()
	if len(p.layerSegs) == 0 {
		return
	}

	var order []int
	byMat := make(map[int]*ObjectSegment)
	for _, s := range p.layerSegs {
		if m, ok := byMat[s.Material]; ok {
			m.Commands = append(m.Commands, s.Commands...)
			continue
		}
		byMat[s.Material] = s
		order = append(order, s.Material)
	}

	var kept []*ObjectSegment
	var carry []gcode.Command
	for _, mat := range order {
		s := byMat[mat]
		if !hasPrintMove(s.Commands) {
			carry = append(carry, s.Commands...)
			continue
		}
		if len(carry) > 0 {
			s.Commands = append(append([]gcode.Command{}, carry...), s.Commands...)
			carry = nil
		}
		kept = append(kept, s)
	}
	if len(carry) > 0 {
		switch {
		case len(kept) > 0:
			last := kept[len(kept)-1]
			last.Commands = append(last.Commands, carry...)
		case len(p.doc.Segments) > 0:
			prev := p.doc.Segments[len(p.doc.Segments)-1]
			prev.Commands = append(prev.Commands, carry...)
		default:
			p.doc.Header = append(p.doc.Header, carry...)
		}
	}

	for _, s := range kept {
		s.Z = p.layerZ
		s.ID = p.nextID
		p.nextID++
		p.doc.Segments = append(p.doc.Segments, s)
	}
	p.layerSegs = nil
}

// hasPrintMove reports whether any command extrudes at a planar
// position. Extrusion without X/Y words (a stationary purge) leaves no
// footprint, so runs without a planar print move fold into a
// neighboring segment instead of standing on their own.
func hasPrintMove(cmds []gcode.Command) bool {
	for _, c := range cmds {
		if c.IsExtruding() && c.HasX && c.HasY {
			return true
		}
	}
	return false
}

func (p *parser) finish() {
	if p.capActive {
		p.endCapture()
	}
	p.flushPending()
	p.closeLayer()
	p.extractFooter()
}

// extractFooter moves everything after the file's last extruding move
// into the untouched footer block, so end-of-print commands stay at the
// very end of the regenerated stream.
func (p *parser) extractFooter() {
	segs := p.doc.Segments
	last := -1
	for i := len(segs) - 1; i >= 0; i-- {
		for _, c := range segs[i].Commands {
			if c.IsExtruding() {
				last = i
				break
			}
		}
		if last >= 0 {
			break
		}
	}
	if last < 0 {
		return
	}

	var footer []gcode.Command
	s := segs[last]
	cut := len(s.Commands)
	for j := len(s.Commands) - 1; j >= 0; j-- {
		if s.Commands[j].IsExtruding() {
			cut = j + 1
			break
		}
	}
	footer = append(footer, s.Commands[cut:]...)
	s.Commands = s.Commands[:cut]
	for _, t := range segs[last+1:] {
		footer = append(footer, t.Commands...)
	}
	p.doc.Segments = segs[:last+1]
	p.doc.Footer = footer
}
