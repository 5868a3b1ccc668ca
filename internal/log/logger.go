// SPDX-License-Identifier: MIT

// Package log is the process-wide levelled logger. Messages go to stderr
// as "<date> <time.micros> [LEVEL] message k=v ...".
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

var currentLevel atomic.Uint32

var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// Fields are key/value pairs appended to a log line.
type Fields map[string]any

// String renders the fields sorted by key so lines are stable.
func (f Fields) String() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, f[k])
	}
	return b.String()
}

// Entry is a logger bound to a set of fields.
type Entry struct {
	fields Fields
}

// With returns an Entry that appends fields to every message.
func With(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// With returns a new Entry carrying e's fields merged with fields.
func (e *Entry) With(fields Fields) *Entry {
	var base Fields
	if e != nil {
		base = e.fields
	}
	merged := make(Fields, len(base)+len(fields))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

func (e *Entry) output(level LogLevel, msg string) {
	if !shouldLog(level) {
		return
	}
	// INFO and WARN get an extra space so messages line up with DEBUG/ERROR.
	pad := " "
	if level == LevelInfo || level == LevelWarn {
		pad = "  "
	}
	if e != nil && len(e.fields) > 0 {
		logger.Printf("[%s]%s%s %s", level, pad, msg, e.fields)
		return
	}
	logger.Printf("[%s]%s%s", level, pad, msg)
}

func (e *Entry) Debugf(format string, v ...any) { e.output(LevelDebug, fmt.Sprintf(format, v...)) }
func (e *Entry) Infof(format string, v ...any)  { e.output(LevelInfo, fmt.Sprintf(format, v...)) }
func (e *Entry) Warnf(format string, v ...any)  { e.output(LevelWarn, fmt.Sprintf(format, v...)) }
func (e *Entry) Errorf(format string, v ...any) { e.output(LevelError, fmt.Sprintf(format, v...)) }

var root *Entry

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { root.output(LevelDebug, fmt.Sprintf(format, v...)) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { root.output(LevelInfo, fmt.Sprintf(format, v...)) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { root.output(LevelWarn, fmt.Sprintf(format, v...)) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { root.output(LevelError, fmt.Sprintf(format, v...)) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}
