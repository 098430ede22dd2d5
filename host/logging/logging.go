// Package logging builds the structured loggers of the host tools.
package logging

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slog"
)

// Component identifies a subsystem for log filtering.
type Component string

// Host component identifiers.
const (
	ComponentCLI       Component = "cli"
	ComponentClient    Component = "client"
	ComponentSerial    Component = "serial"
	ComponentBridge    Component = "bridge"
	ComponentTransport Component = "transport"
)

// Format specifies the output format for logging.
type Format int

// Log format options.
const (
	FormatText Format = iota // Text format (default)
	FormatJSON               // JSON format
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("logging: unknown format %q", s)
}

// ParseLevel accepts debug, info, warn or error, optionally with an
// offset such as "debug-2".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging: %w", err)
	}
	return l, nil
}

// New returns a logger writing to w.
func New(w io.Writer, format Format, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// For tags every record of logger with the component. A nil logger
// discards.
func For(logger *slog.Logger, c Component) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With("component", string(c))
}
