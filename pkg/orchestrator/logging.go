package orchestrator

import (
	"log/slog"
	"os"
)

// SlogLogger adapts the orchestrator's Logger interface onto log/slog.
// It is the default production logger: structured, leveled, and backed
// by the standard library rather than a third-party logging package —
// none of the retrieved reference repos pull one in (see DESIGN.md).
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger builds a Logger writing JSON lines to w (os.Stdout when
// w is nil).
func NewSlogLogger(w *os.File) *SlogLogger {
	if w == nil {
		w = os.Stdout
	}
	return &SlogLogger{l: slog.New(slog.NewJSONHandler(w, nil))}
}

func (s *SlogLogger) Debug(msg string, args ...interface{}) { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...interface{})  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...interface{})  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...interface{}) { s.l.Error(msg, args...) }
