// Unified error handling for the layer batching transformer
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Input-validation failures at the parser boundary
	ErrParse            ErrorCode = "PARSE"
	ErrMalformedSegment ErrorCode = "MALFORMED_SEGMENT"

	// Scheduling failures
	ErrUnsafeSingleton ErrorCode = "UNSAFE_SINGLETON"

	// Non-fatal: a required (from,to) tool-change sequence was never
	// captured from the input and a fallback was synthesized
	ErrMissingToolChange ErrorCode = "MISSING_TOOLCHANGE"

	// Configuration rejected before scheduling starts
	ErrConfigRange ErrorCode = "CONFIG_RANGE"

	// Defensive re-emission check failed; output would be corrupt
	ErrInternalConsistency ErrorCode = "INTERNAL_CONSISTENCY"
)

// TransformError is the unified error type for the transformation run.
type TransformError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Layer is the physical layer index the error is attributed to (-1 if
	// not layer-specific)
	Layer int

	// Tool is the material/tool id the error is attributed to (-1 if not
	// tool-specific)
	Tool int

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *TransformError) Error() string {
	if e.Layer >= 0 && e.Tool >= 0 {
		return fmt.Sprintf("[%s] layer %d tool T%d: %s", e.Code, e.Layer, e.Tool, e.Message)
	}
	if e.Layer >= 0 {
		return fmt.Sprintf("[%s] layer %d: %s", e.Code, e.Layer, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TransformError) Unwrap() error {
	return e.Err
}

// SetLayer sets the physical layer index
func (e *TransformError) SetLayer(layer int) *TransformError {
	e.Layer = layer
	return e
}

// SetTool sets the tool id
func (e *TransformError) SetTool(tool int) *TransformError {
	e.Tool = tool
	return e
}

// New creates a new TransformError
func New(code ErrorCode, message string) *TransformError {
	return &TransformError{Code: code, Message: message, Layer: -1, Tool: -1}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *TransformError {
	return &TransformError{Code: code, Message: message, Layer: -1, Tool: -1, Err: err}
}

// ParseError creates an error for a malformed input stream
func ParseError(line int, reason string) *TransformError {
	return New(ErrParse, fmt.Sprintf("line %d: %s", line, reason))
}

// MalformedSegmentError creates an error for a segment with no commands or
// no footprint. Attributed to the parser boundary; always fatal.
func MalformedSegmentError(layer, tool int, reason string) *TransformError {
	return New(ErrMalformedSegment, reason).SetLayer(layer).SetTool(tool)
}

// UnsafeSingletonError reports a segment that collides even as its own
// single-layer batch.
func UnsafeSingletonError(layer, tool int) *TransformError {
	return New(ErrUnsafeSingleton, "segment collides even as a single-layer batch").
		SetLayer(layer).SetTool(tool)
}

// MissingToolChangeError reports a (from,to) pair with no captured
// tool-change sequence. Non-fatal; the synchronizer substitutes a
// synthesized fallback and records this as a warning.
func MissingToolChangeError(from, to int) *TransformError {
	return New(ErrMissingToolChange,
		fmt.Sprintf("no captured tool-change sequence for T%d -> T%d, synthesized fallback used", from, to))
}

// ConfigRangeError creates an error for an out-of-range configuration value
func ConfigRangeError(option string, reason string) *TransformError {
	return New(ErrConfigRange, fmt.Sprintf("option %q: %s", option, reason))
}

// ConsistencyError reports a violation of the re-emission invariant
// (every input command emitted exactly once).
func ConsistencyError(reason string) *TransformError {
	return New(ErrInternalConsistency, reason)
}

// Is checks if error matches the given error code
func Is(err error, code ErrorCode) bool {
	var te *TransformError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsFatal reports whether the error aborts the whole transformation.
// Only MISSING_TOOLCHANGE is recoverable; it is downgraded to a warning
// in the result summary.
func IsFatal(err error) bool {
	return !Is(err, ErrMissingToolChange)
}
