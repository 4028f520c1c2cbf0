// Package logging builds the slog logger used by the diamond CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/diamond/internal/config"
)

// Profile selects defaults for a kind of process.
type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Options returns handler options for profile at level.
// The test profile drops timestamps so output is reproducible.
func Options(profile Profile, level slog.Level) *slog.HandlerOptions {
	opts := &slog.HandlerOptions{Level: level}
	if profile == ProfileTest {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}
	return opts
}

// New builds a logger writing to w as configured.
func New(w io.Writer, cfg config.LogConfig, profile Profile) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := Options(profile, level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", raw)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
