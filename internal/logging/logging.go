// Package logging builds the zerolog logger handed to every pipeline stage.
// There is no global logger: cmd constructs one at startup and injects it.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is one of trace, debug, info, warn, error. Default: info.
	Level string
	// Format is console or json. Default: console.
	Format string
	// Dir, when set, additionally writes JSON lines to Dir/log_YYYY-MM-DD.log.
	Dir string
	// Output defaults to os.Stderr.
	Output io.Writer
	// Now is used for the log file name; defaults to time.Now.
	Now func() time.Time
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger and a closer for the optional log file.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var primary io.Writer = out
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	case "json":
	default:
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unsupported log format %q (use console|json)", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	writer := primary
	if cfg.Dir != "" {
		now := time.Now
		if cfg.Now != nil {
			now = cfg.Now
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("create log dir: %w", err)
		}
		name := filepath.Join(cfg.Dir, fmt.Sprintf("log_%s.log", now().Format("2006-01-02")))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		writer = zerolog.MultiLevelWriter(primary, f)
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

// ParseLevel converts a level name to a zerolog level; empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
