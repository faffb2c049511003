// Package logging wires up STRIDE's structured logger: a stdout sink for
// interactive use and, once a run directory exists, a second sink writing
// to that run's messages.log, fanned out via slog-multi the way the rest
// of the corpus wires multi-sink slog handlers.
package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Level is shared by every handler this package builds, so callers can
// raise or lower verbosity after construction (e.g. from a --verbose flag).
var Level = new(slog.LevelVar)

// New builds a logger writing to stdout only.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: Level}))
}

// NewWithRunLog builds a logger fanned out to stdout and to runLogPath,
// which is created (or appended to) for the duration of the run.
func NewWithRunLog(runLogPath string) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(runLogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: Level}),
		slog.NewJSONHandler(f, &slog.HandlerOptions{Level: Level}),
	}
	logger := slog.New(slogmulti.Fanout(handlers...))
	return logger, f.Close, nil
}

// NewTo builds a logger writing only to w, for tests and other callers that
// want to inspect log output directly.
func NewTo(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level}))
}
