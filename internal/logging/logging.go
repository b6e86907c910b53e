// Package logging opens the agent's JSON log file.
//
// The TUI owns the terminal, so nothing may write to stdout or stderr while it
// runs. Every component receives a *slog.Logger produced here and tagged with
// its component name.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels accepted in config.toml.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// FileName is the log file created inside the configured log directory.
const FileName = "tray.log"

// Sink is a JSON slog logger bound to a file it must close.
type Sink struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
	path string
}

// Open creates dir if needed and appends JSON records to dir/tray.log.
// An empty dir logs to stderr, which only the headless serve mode should use.
func Open(dir, level string) (*Sink, error) {
	var (
		writer io.Writer = os.Stderr
		file   *os.File
		path   string
	)

	if strings.TrimSpace(dir) != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		path = filepath.Join(dir, FileName)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		writer = f
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Sink{Logger: slog.New(handler), file: file, path: path}, nil
}

// Path returns the log file path, or "" when logging to stderr.
func (s *Sink) Path() string {
	return s.path
}

// Close syncs and closes the log file. It is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	s.file = nil
	return nil
}

// ParseLevel converts a config level string to slog.Level, defaulting to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
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

// Nop returns a logger that discards everything. Tests and optional
// collaborators use it in place of a nil check.
func Nop() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// OrNop returns logger, or a discarding logger when it is nil.
func OrNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}
