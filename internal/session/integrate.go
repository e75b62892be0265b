package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

// Integrate advances through times in order and returns one state per
// entry. times must be non-decreasing and start at or after CurrentTime; an
// entry equal to the current time yields the current state.
//
// On failure the partial result is dropped and an *IntegrationError names
// the failing index. CurrentTime and State stay at the last output reached
// and the backend is rewound there, so the session remains usable.
func (s *Session) Integrate(times []float64) (*Result, error) {
	const op = "integrate"
	if err := s.live(op); err != nil {
		return nil, err
	}
	if s.stage != Ready {
		return nil, s.fail(op, ErrNotReady, fmt.Errorf("stage %s", s.stage), false)
	}
	if err := s.checkTimes(times); err != nil {
		return nil, s.fail(op, ErrTimeOrder, err, false)
	}

	res := NewResult(times, s.n)
	start := time.Now()
	before, _ := s.Stats()

	for i, tout := range times {
		row := res.States[i]
		if tout == s.t {
			copy(row, s.state)
			continue
		}

		reached, err := s.handle.AdvanceTo(tout, row)
		if err != nil {
			ierr := &IntegrationError{Index: i, Time: tout, Reached: s.t, Err: err}
			after, _ := s.Stats()
			s.metrics.ObserveWork(s.method.String(), before, after)
			s.metrics.ObserveIntegrate(s.method.String(), i, time.Since(start), ierr)
			s.log.Warn("integration failed", "session", s.name, "index", i, "t", tout, "reached", s.t, "error", err)
			return nil, s.rewind(ierr)
		}
		copy(s.state, row)
		s.t = reached
	}

	after, _ := s.Stats()
	s.metrics.ObserveWork(s.method.String(), before, after)
	s.metrics.ObserveIntegrate(s.method.String(), len(times), time.Since(start), nil)
	s.log.Debug("integrated", "session", s.name, "outputs", len(times), "t", s.t, "steps", after.Steps-before.Steps)
	return res, nil
}

// rewind puts the backend back on the last output reached after a failed
// advance left it somewhere in between.
func (s *Session) rewind(cause *IntegrationError) error {
	if err := s.handle.Reinit(s.t, s.state); err != nil {
		s.log.Warn("rewind after failed integration failed", "session", s.name, "error", err)
		s.stage = Failed
		return errors.Join(cause, &OpError{Op: "integrate", Stage: Ready, Err: fmt.Errorf("%w: %w", ErrReinit, err)})
	}
	return cause
}

func (s *Session) checkTimes(times []float64) error {
	prev := s.t
	for i, tout := range times {
		if !finite(tout) {
			return fmt.Errorf("output %d is %v", i, tout)
		}
		if tout < prev {
			if i == 0 {
				return fmt.Errorf("output 0 (t=%g) is before current time %g", tout, prev)
			}
			return fmt.Errorf("output %d (t=%g) is before output %d (t=%g)", i, tout, i-1, prev)
		}
		prev = tout
	}
	return nil
}

// Reset rewinds the session to (t0, y0) keeping tolerances and the linear
// solver. A wrong-length y0 is rejected before the backend is touched.
func (s *Session) Reset(t0 float64, y0 dynamo.State) error {
	const op = "reset"
	if err := s.live(op); err != nil {
		return err
	}
	if s.stage != Ready {
		return s.fail(op, ErrNotReady, fmt.Errorf("stage %s", s.stage), false)
	}
	if len(y0) != s.n {
		return s.fail(op, ErrDimensionMismatch, fmt.Errorf("state length %d, session dimension %d", len(y0), s.n), false)
	}
	if !y0.IsValid() || !finite(t0) {
		return s.fail(op, ErrReinit, dynamo.ErrInvalidState, false)
	}
	if err := s.handle.Reinit(t0, y0); err != nil {
		return s.fail(op, ErrReinit, err, true)
	}

	copy(s.state, y0)
	s.t = t0
	s.metrics.ObserveReset(s.method.String())
	s.log.Debug("session reset", "session", s.name, "t0", t0)
	return nil
}
