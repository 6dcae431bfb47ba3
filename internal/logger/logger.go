// Package logger provides structured logging for the Recall CLI.
//
// Records are emitted through log/slog. When verbose mode is enabled via
// the --verbose flag, debug and info records are printed to stderr to help
// users follow the indexing and search pipelines. Warnings and errors are
// always emitted.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format selects the record encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

var (
	mu      sync.RWMutex
	verbose bool
	format  Format
	output  io.Writer
	base    *slog.Logger
)

func init() {
	format = FormatText
	output = os.Stderr
	rebuild()
}

// rebuild must be called with mu held for writing.
func rebuild() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	base = slog.New(h)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// SetFormat switches between text and JSON records.
func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	format = f
	rebuild()
}

// L returns the current logger. Callers that attach attributes with With
// should fetch it per operation so configuration changes are picked up.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Debug emits a debug record with key-value attributes.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info emits an informational record with key-value attributes.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn emits a warning record with key-value attributes.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error emits an error record with key-value attributes.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// Section prints a section header if verbose mode is enabled.
// In JSON mode the header becomes a debug record.
func Section(name string) {
	mu.RLock()
	v, f, w, l := verbose, format, output, base
	mu.RUnlock()
	if !v {
		return
	}
	if f == FormatJSON {
		l.Debug("section", "name", name)
		return
	}
	fmt.Fprintf(w, "\n=== %s ===\n", name)
}
