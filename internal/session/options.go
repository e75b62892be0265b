package session

import (
	"log/slog"

	"github.com/san-kum/ivpsolve/internal/metrics"
)

type Option func(*Session)

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Session) {
		s.metrics = r
	}
}

// WithName labels log lines emitted by the session.
func WithName(name string) Option {
	return func(s *Session) {
		s.name = name
	}
}
