package backend

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBackend = errors.New("backend: unknown backend")
	ErrNoBackend      = errors.New("backend: no backend registered")

	// ErrNotInitialized indicates a call that needs Init to have succeeded.
	ErrNotInitialized = errors.New("backend: handle not initialized")

	// ErrReleased indicates use of a handle or resource after Release.
	ErrReleased = errors.New("backend: use after release")

	// ErrBadInput indicates an argument the engine cannot accept.
	ErrBadInput = errors.New("backend: illegal input")

	// ErrNoLinearSolver indicates a stiff advance without an attached solver.
	ErrNoLinearSolver = errors.New("backend: linear solver not attached")

	// ErrTooMuchWork indicates the step budget for one output was exhausted.
	ErrTooMuchWork = errors.New("backend: too much work before reaching output time")

	// ErrStepUnderflow indicates the step size fell below machine resolution.
	ErrStepUnderflow = errors.New("backend: step size too small")

	// ErrRHSFailure indicates the right-hand side returned an error.
	ErrRHSFailure = errors.New("backend: right-hand side evaluation failed")

	// ErrSingular indicates the iteration matrix could not be factorized.
	ErrSingular = errors.New("backend: singular iteration matrix")

	// ErrBadTarget indicates an output time behind the current time.
	ErrBadTarget = errors.New("backend: output time behind current time")
)

// StepError carries the engine time at which an advance gave up.
type StepError struct {
	Time float64
	Step float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("t=%.6g h=%.3g: %v", e.Time, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
