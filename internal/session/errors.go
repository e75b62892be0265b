package session

import (
	"errors"
	"fmt"
)

var (
	ErrBackendInit       = errors.New("session: backend initialization failed")
	ErrInvalidTolerance  = errors.New("session: invalid tolerances")
	ErrLinearSolverSetup = errors.New("session: linear solver setup failed")
	ErrDataBinding       = errors.New("session: parameter binding failed")
	ErrReinit            = errors.New("session: reinitialization failed")
	ErrIntegration       = errors.New("session: integration failed")
	ErrNotReady          = errors.New("session: not ready")
	ErrDimensionMismatch = errors.New("session: dimension mismatch")

	// ErrOutOfOrder indicates a stage transition requested from the wrong
	// stage, e.g. configuring twice.
	ErrOutOfOrder = errors.New("session: operation out of order")

	// ErrTimeOrder indicates output times that are unordered, non-finite or
	// behind the current time.
	ErrTimeOrder = errors.New("session: output times out of order")

	// ErrFailed indicates use of a session after a terminal failure.
	ErrFailed = errors.New("session: unusable after configuration failure")

	// ErrDestroyed indicates use of a session after Destroy.
	ErrDestroyed = errors.New("session: use after destroy")
)

// OpError reports which operation failed and the stage the session was in.
type OpError struct {
	Op    string
	Stage Stage
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s (stage %s): %v", e.Op, e.Stage, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IntegrationError identifies the output time an Integrate call failed on.
// It matches ErrIntegration as well as the backend cause.
type IntegrationError struct {
	Index   int
	Time    float64
	Reached float64
	Err     error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integrate: output %d (t=%g) failed, last reached t=%g: %v", e.Index, e.Time, e.Reached, e.Err)
}

func (e *IntegrationError) Unwrap() []error {
	return []error{ErrIntegration, e.Err}
}
