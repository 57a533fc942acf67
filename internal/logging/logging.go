// Package logging builds the zerolog logger used across chatstream.
//
// The terminal belongs to the TUI and to streamed answers, so log lines go to a
// file when one is configured and are discarded otherwise.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a handle that owns the log file, if any
type Logger struct {
	zerolog.Logger
	closer io.Closer
}

// New returns a logger writing JSON lines to path.
// An empty path yields a disabled logger. verbose lowers the level to debug.
func New(path string, verbose bool) (*Logger, error) {
	if path == "" {
		return Nop(), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := NewWithWriter(f, verbose)
	l.closer = f
	return l, nil
}

// NewWithWriter returns a logger writing to w
func NewWithWriter(w io.Writer, verbose bool) *Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("app", "chatstream").
		Logger()
	return &Logger{Logger: zl}
}

// Nop returns a logger that drops everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Close releases the underlying file
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
