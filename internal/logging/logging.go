// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package logging provides the bridge's structured logging, layered the
// way the teacher corpus layers it:
//
//   - Default: stderr output, text format when the descriptor is a
//     terminal, JSON otherwise (so a supervised process still gets
//     machine-parseable logs without an explicit config).
//   - Optional: file logging alongside stderr, always JSON.
//
// Built on log/slog; Logger wraps a *slog.Logger with a Config record and
// an optional file handle to close on shutdown.
//
// Thread Safety:
//
//	Logger is safe for concurrent use; slog.Logger already is, and the
//	only additional mutable state (the file handle) is set once at
//	construction and only read afterward.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Level mirrors slog's four severities, matching the teacher's own
// Debug < Info < Warn < Error ordering.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses "debug"/"info"/"warn"/"error" case-insensitively,
// defaulting to LevelInfo for anything else.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config configures a Logger. A zero-value Config logs Debug+ to stderr
// (the zero Level is LevelDebug),
// text if stderr is a terminal and JSON otherwise.
type Config struct {
	// Level is the minimum severity that reaches any sink.
	Level Level

	// Service tags every entry with a "service" attribute (e.g.
	// "executor", "scheduler").
	Service string

	// LogDir, when set, additionally writes JSON logs to
	// {LogDir}/{Service}_{YYYY-MM-DD}.log.
	LogDir string

	// JSON forces JSON stderr output regardless of terminal detection.
	JSON bool

	// Quiet disables the stderr sink (file sink, if configured, still
	// runs); useful for a daemonized `bridge serve`.
	Quiet bool
}

// Logger wraps slog.Logger with the bridge's layered-sink setup.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
}

// Default returns an Info-level logger writing text to stderr when
// stderr is a terminal, JSON otherwise.
func Default() *Logger {
	l, err := New(Config{Level: LevelInfo})
	if err != nil {
		// Config{} never touches a file, so New cannot fail; a panic here
		// would indicate a logic error in New itself.
		panic(err)
	}
	return l
}

// New builds a Logger per cfg.
func New(cfg Config) (*Logger, error) {
	var writers []io.Writer
	jsonOut := cfg.JSON || !isatty.IsTerminal(os.Stderr.Fd())

	if !cfg.Quiet {
		writers = append(writers, os.Stderr)
	}

	var file *os.File
	if cfg.LogDir != "" {
		dir, err := expandHome(cfg.LogDir)
		if err != nil {
			return nil, fmt.Errorf("expanding log dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		service := cfg.Service
		if service == "" {
			service = "bridge"
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		file = f
	}

	var handler slog.Handler
	switch {
	case file != nil && len(writers) > 0:
		// Stderr keeps its own format preference; the file sink is
		// always JSON, matching the teacher's "file logs are always
		// JSON regardless of this setting" rule.
		stderrHandler := newHandler(writers[0], jsonOut, cfg.Level)
		fileHandler := newHandler(file, true, cfg.Level)
		handler = fanoutHandler{stderrHandler, fileHandler}
	case file != nil:
		handler = newHandler(file, true, cfg.Level)
	case len(writers) > 0:
		handler = newHandler(writers[0], jsonOut, cfg.Level)
	default:
		handler = newHandler(io.Discard, true, cfg.Level)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}

	return &Logger{slog: logger, config: cfg, file: file}, nil
}

func newHandler(w io.Writer, asJSON bool, level Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level.toSlog()}
	if asJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func expandHome(dir string) (string, error) {
	if !strings.HasPrefix(dir, "~") {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
}

// Close flushes and closes the file sink, if one is open.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// With returns a child logger carrying additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), config: l.config, file: l.file}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// Slog exposes the underlying *slog.Logger for callers (e.g.
// otelgin middleware) that want the standard interface directly.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// fanoutHandler duplicates every record to multiple handlers — used when
// both a stderr sink and a file sink are active.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
