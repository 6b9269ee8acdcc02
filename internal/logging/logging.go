// Package logging builds the zerolog logger used for diagnostics.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to w at the named level ("debug",
// "info", "warn", "error"). An empty level means warn.
func New(w io.Writer, level string, noColor bool) (zerolog.Logger, error) {
	lvl := zerolog.WarnLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
		}
		lvl = parsed
	}

	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// JSON returns a logger writing one JSON object per line, for --json runs.
func JSON(w io.Writer, level string) (zerolog.Logger, error) {
	l, err := New(w, level, true)
	if err != nil {
		return l, err
	}
	return zerolog.New(w).Level(l.GetLevel()).With().Timestamp().Logger(), nil
}
