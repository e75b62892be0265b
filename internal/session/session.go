package session

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/dynamo"
	"github.com/san-kum/ivpsolve/internal/logging"
	"github.com/san-kum/ivpsolve/internal/metrics"
)

type Session struct {
	name   string
	method dynamo.Method
	stage  Stage

	handle   backend.Handle
	solver   backend.Resource
	jacobian backend.Resource

	binding dynamo.Binding
	state   dynamo.State
	n       int
	t       float64
	tol     dynamo.Tolerances

	linearSolverReady bool

	log     *slog.Logger
	metrics *metrics.Recorder
}

// New creates a session and its backend handle. On failure there is nothing
// to destroy.
func New(b backend.Backend, method dynamo.Method, opts ...Option) (*Session, error) {
	s := &Session{
		name:   "session",
		method: method,
		stage:  Created,
		log:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if b == nil {
		return nil, &OpError{Op: "create", Stage: Created, Err: fmt.Errorf("%w: nil backend", ErrBackendInit)}
	}
	h, err := b.Create(method)
	if err != nil {
		s.metrics.ObserveFailure("create")
		return nil, &OpError{Op: "create", Stage: Created, Err: fmt.Errorf("%w: %w", ErrBackendInit, err)}
	}
	s.handle = h

	s.metrics.SessionOpened()
	s.log.Debug("session created", "session", s.name, "backend", b.Name(), "method", method)
	return s, nil
}

// Configure binds the right-hand side and the initial condition. The state
// dimension is fixed to len(y0) for the rest of the session.
func (s *Session) Configure(binding dynamo.Binding, t0 float64, y0 dynamo.State) error {
	const op = "configure"
	if err := s.live(op); err != nil {
		return err
	}
	if s.stage != Created {
		return s.fail(op, ErrOutOfOrder, fmt.Errorf("already configured"), false)
	}
	if len(y0) == 0 {
		return s.fail(op, ErrDimensionMismatch, fmt.Errorf("empty initial state"), false)
	}
	if binding.F == nil {
		return s.fail(op, ErrBackendInit, fmt.Errorf("nil right-hand side"), false)
	}
	if !y0.IsValid() || !finite(t0) {
		return s.fail(op, ErrBackendInit, dynamo.ErrInvalidState, false)
	}

	state := y0.Clone()
	if err := s.handle.Init(binding.F, t0, state); err != nil {
		return s.fail(op, ErrBackendInit, err, true)
	}
	if binding.Data != nil {
		if err := s.handle.SetUserData(binding.Data); err != nil {
			return s.fail(op, ErrDataBinding, err, true)
		}
	}

	s.binding = binding
	s.state = state
	s.n = len(state)
	s.t = t0
	s.advance(Initialized)
	return nil
}

// SetTolerances may be repeated at any stage from Initialized onwards.
// Invalid values are rejected before the backend sees them and leave the
// stage unchanged.
func (s *Session) SetTolerances(abs, rel float64) error {
	const op = "set-tolerances"
	if err := s.live(op); err != nil {
		return err
	}
	if !s.stage.reached(Initialized) {
		return s.fail(op, ErrOutOfOrder, fmt.Errorf("configure first"), false)
	}
	tol := dynamo.Tolerances{Abs: abs, Rel: rel}
	if !tol.Valid() {
		return s.fail(op, ErrInvalidTolerance, fmt.Errorf("abs=%g rel=%g must be positive and finite", abs, rel), false)
	}
	if err := s.handle.SetTolerances(abs, rel); err != nil {
		return s.fail(op, ErrInvalidTolerance, err, true)
	}

	s.tol = tol
	if s.stage == Initialized {
		s.advance(ToleranceSet)
		if !s.method.NeedsLinearSolver() {
			s.advance(Ready)
		}
	}
	return nil
}

// Prepare builds and attaches the n×n Jacobian and dense linear solver.
// Non-stiff sessions skip this stage; calling Prepare on them after
// tolerances are set is a no-op.
func (s *Session) Prepare() error {
	const op = "prepare"
	if err := s.live(op); err != nil {
		return err
	}
	if !s.stage.reached(ToleranceSet) {
		return s.fail(op, ErrOutOfOrder, fmt.Errorf("set tolerances first"), false)
	}
	if !s.method.NeedsLinearSolver() {
		return nil
	}
	if s.linearSolverReady {
		return s.fail(op, ErrOutOfOrder, fmt.Errorf("linear solver already prepared"), false)
	}

	solver, jac, err := s.handle.AttachLinearSolver(s.n)
	if err != nil {
		releaseAll(solver, jac)
		return s.fail(op, ErrLinearSolverSetup, err, true)
	}

	s.solver, s.jacobian = solver, jac
	s.linearSolverReady = true
	s.advance(Prepared)
	s.advance(Ready)
	return nil
}

// BindParameters replaces the parameter blob seen by the right-hand side.
func (s *Session) BindParameters(data any) error {
	const op = "bind-parameters"
	if err := s.live(op); err != nil {
		return err
	}
	if err := s.handle.SetUserData(data); err != nil {
		return s.fail(op, ErrDataBinding, err, true)
	}
	s.binding.Data = data
	return nil
}

// SetMaxSteps bounds the backend work per output time when the backend
// supports it.
func (s *Session) SetMaxSteps(n int) error {
	const op = "set-max-steps"
	if err := s.live(op); err != nil {
		return err
	}
	limiter, ok := s.handle.(backend.StepLimiter)
	if !ok {
		return &OpError{Op: op, Stage: s.stage, Err: errors.ErrUnsupported}
	}
	if err := limiter.SetMaxSteps(n); err != nil {
		return &OpError{Op: op, Stage: s.stage, Err: err}
	}
	return nil
}

// Destroy releases the linear solver, the Jacobian, the state vector and the
// backend handle, in that order. Resources never created are skipped.
// Calling Destroy twice returns ErrDestroyed.
func (s *Session) Destroy() error {
	const op = "destroy"
	if s.stage == Destroyed {
		return &OpError{Op: op, Stage: Destroyed, Err: ErrDestroyed}
	}

	var errs []error
	if s.solver != nil {
		if err := s.solver.Release(); err != nil {
			errs = append(errs, fmt.Errorf("linear solver: %w", err))
		}
		s.solver = nil
	}
	if s.jacobian != nil {
		if err := s.jacobian.Release(); err != nil {
			errs = append(errs, fmt.Errorf("jacobian: %w", err))
		}
		s.jacobian = nil
	}
	s.linearSolverReady = false
	s.state = nil
	if s.handle != nil {
		if err := s.handle.Release(); err != nil {
			errs = append(errs, fmt.Errorf("backend handle: %w", err))
		}
		s.handle = nil
	}
	s.binding = dynamo.Binding{}

	prev := s.stage
	s.stage = Destroyed
	s.metrics.SessionClosed()
	s.log.Debug("session destroyed", "session", s.name, "from", prev)

	if err := errors.Join(errs...); err != nil {
		return &OpError{Op: op, Stage: prev, Err: err}
	}
	return nil
}

func (s *Session) Name() string { return s.name }

func (s *Session) Method() dynamo.Method { return s.method }

func (s *Session) Stage() Stage { return s.stage }

// Dim is the state dimension, zero before Configure.
func (s *Session) Dim() int { return s.n }

func (s *Session) CurrentTime() float64 { return s.t }

func (s *Session) Tolerances() dynamo.Tolerances { return s.tol }

func (s *Session) LinearSolverReady() bool { return s.linearSolverReady }

func (s *Session) Parameters() any { return s.binding.Data }

// State returns a copy of the state at CurrentTime, or nil when there is
// none.
func (s *Session) State() dynamo.State {
	if s.state == nil {
		return nil
	}
	return s.state.Clone()
}

// Stats returns the backend counters when the backend reports them.
func (s *Session) Stats() (backend.Stats, bool) {
	if s.handle == nil {
		return backend.Stats{}, false
	}
	r, ok := s.handle.(backend.StatsReporter)
	if !ok {
		return backend.Stats{}, false
	}
	return r.Stats(), true
}

func (s *Session) live(op string) error {
	switch s.stage {
	case Destroyed:
		return &OpError{Op: op, Stage: Destroyed, Err: ErrDestroyed}
	case Failed:
		return &OpError{Op: op, Stage: Failed, Err: ErrFailed}
	}
	return nil
}

func (s *Session) advance(to Stage) {
	s.log.Debug("session stage", "session", s.name, "from", s.stage, "to", to)
	s.stage = to
}

// fail wraps sentinel with cause and, when terminal, moves the session to
// Failed so only Destroy is accepted afterwards.
func (s *Session) fail(op string, sentinel, cause error, terminal bool) error {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	opErr := &OpError{Op: op, Stage: s.stage, Err: err}

	s.log.Warn("session operation failed", "session", s.name, "op", op, "stage", s.stage, "terminal", terminal, "error", err)
	s.metrics.ObserveFailure(op)
	if terminal {
		s.stage = Failed
	}
	return opErr
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func releaseAll(resources ...backend.Resource) {
	for _, r := range resources {
		if r != nil {
			_ = r.Release()
		}
	}
}
