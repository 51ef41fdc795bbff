// Structured logging for the layer batching transformer
//
// Provides leveled logging with structured fields, per-component
// prefixes, and environment-based configuration.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a LogLevel
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// OutputFormat specifies the output format for log messages
type OutputFormat int

const (
	FormatText OutputFormat = iota
	FormatJSON
)

// Fields is a map of structured logging fields
type Fields map[string]interface{}

// Logger is the main logging type. Loggers for sub-components share the
// writer and level of the logger they were derived from.
type Logger struct {
	mu        sync.Mutex
	prefix    string
	writer    io.Writer
	level     LogLevel
	colorize  bool
	outFormat OutputFormat
}

var ansiColors = map[LogLevel]string{
	DEBUG: "\x1b[36m",
	INFO:  "\x1b[32m",
	WARN:  "\x1b[33m",
	ERROR: "\x1b[31m",
}

const ansiReset = "\x1b[0m"

// New creates a new logger with the given component prefix
func New(prefix string) *Logger {
	return &Logger{
		prefix:    prefix,
		writer:    os.Stderr,
		level:     INFO,
		colorize:  os.Getenv("NO_COLOR") == "",
		outFormat: FormatText,
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetWriter sets the output writer (e.g., for testing)
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

// SetFormat sets the output format (FormatText or FormatJSON)
func (l *Logger) SetFormat(format OutputFormat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outFormat = format
}

// WithPrefix returns a new logger with a modified prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		prefix:    prefix,
		writer:    l.writer,
		level:     l.level,
		colorize:  l.colorize,
		outFormat: l.outFormat,
	}
}

type jsonLogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) formatText(level LogLevel, msg string, fields Fields) string {
	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" [")
	sb.WriteString(fmt.Sprintf("%-5s", level.String()))
	sb.WriteString("] ")
	if l.colorize {
		sb.WriteString(ansiColors[level])
	}
	sb.WriteString(l.prefix)
	if l.colorize {
		sb.WriteString(ansiReset)
	}
	sb.WriteString(": ")
	sb.WriteString(msg)
	if len(fields) > 0 {
		sb.WriteString(" {")
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(fmt.Sprintf("%v", fields[k]))
		}
		sb.WriteString("}")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (l *Logger) formatJSON(level LogLevel, msg string, fields Fields) string {
	entry := jsonLogEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     level.String(),
		Logger:    l.prefix,
		Message:   msg,
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal log entry: %v"}`+"\n", err)
	}
	return string(data) + "\n"
}

func (l *Logger) log(level LogLevel, msg string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	var out string
	if l.outFormat == FormatJSON {
		out = l.formatJSON(level, msg, fields)
	} else {
		out = l.formatText(level, msg, fields)
	}
	fmt.Fprint(l.writer, out)
}

// Debug logs a formatted message at DEBUG level
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DEBUG, sprintf(msg, args), nil)
}

// Info logs a formatted message at INFO level
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(INFO, sprintf(msg, args), nil)
}

// Warn logs a formatted message at WARN level
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WARN, sprintf(msg, args), nil)
}

// Error logs a formatted message at ERROR level
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ERROR, sprintf(msg, args), nil)
}

// DebugFields logs a message with structured fields at DEBUG level
func (l *Logger) DebugFields(msg string, fields Fields) {
	l.log(DEBUG, msg, fields)
}

// InfoFields logs a message with structured fields at INFO level
func (l *Logger) InfoFields(msg string, fields Fields) {
	l.log(INFO, msg, fields)
}

// WarnFields logs a message with structured fields at WARN level
func (l *Logger) WarnFields(msg string, fields Fields) {
	l.log(WARN, msg, fields)
}

func sprintf(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// GetLogger returns a component logger derived from the default logger
func GetLogger(prefix string) *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New("layerbatch")
		configureFromEnv(defaultLogger)
	}
	return defaultLogger.WithPrefix(prefix)
}

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// Environment variables:
//   - LAYERBATCH_LOG_LEVEL: DEBUG, INFO, WARN, ERROR
//   - LAYERBATCH_LOG_FORMAT: text, json
//   - NO_COLOR: any non-empty value disables colors
func configureFromEnv(l *Logger) {
	if levelStr := os.Getenv("LAYERBATCH_LOG_LEVEL"); levelStr != "" {
		l.SetLevel(ParseLevel(levelStr))
	}
	if formatStr := os.Getenv("LAYERBATCH_LOG_FORMAT"); formatStr != "" {
		switch strings.ToLower(formatStr) {
		case "json":
			l.SetFormat(FormatJSON)
		case "text":
			l.SetFormat(FormatText)
		}
	}
	if os.Getenv("NO_COLOR") != "" {
		l.SetColorize(false)
	}
}

// SetColorize enables or disables colorized output
func (l *Logger) SetColorize(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colorize = enable
}
