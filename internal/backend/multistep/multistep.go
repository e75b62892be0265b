package multistep

import (
	"fmt"
	"math"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/dynamo"
)

const (
	Name = "multistep"

	// DefaultMaxSteps matches the usual multistep default per output time.
	DefaultMaxSteps = 500
)

func init() {
	backend.Register(New())
}

type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Create(method dynamo.Method) (backend.Handle, error) {
	switch method {
	case dynamo.Stiff, dynamo.NonStiff:
	default:
		return nil, fmt.Errorf("%w: %v", backend.ErrBadInput, method)
	}
	return &Handle{method: method, maxSteps: DefaultMaxSteps}, nil
}

// stepper takes one trial step of size dt from (t, y), writing the candidate
// into ynew and the local error estimate into yerr.
type stepper interface {
	attempt(h *Handle, t, dt float64, y, ynew, yerr dynamo.State) error
	// errorOrder is q+1 for an embedded estimate of order q.
	errorOrder() float64
}

type Handle struct {
	method dynamo.Method
	rhs    dynamo.RHSFunc
	data   any

	n     int
	t     float64
	y     dynamo.State
	hnext float64

	abs, rel float64
	tolSet   bool

	maxSteps int
	stats    backend.Stats

	stepper stepper
	jac     *Jacobian
	ls      *DenseSolver

	ynew, yerr, fwork dynamo.State

	initialized bool
	released    bool
}

func (h *Handle) Init(rhs dynamo.RHSFunc, t0 float64, y0 dynamo.State) error {
	if h.released {
		return backend.ErrReleased
	}
	if h.initialized {
		return fmt.Errorf("%w: handle already initialized", backend.ErrBadInput)
	}
	if rhs == nil {
		return fmt.Errorf("%w: nil right-hand side", backend.ErrBadInput)
	}
	if len(y0) == 0 {
		return fmt.Errorf("%w: empty initial state", backend.ErrBadInput)
	}
	if !y0.IsValid() || math.IsNaN(t0) || math.IsInf(t0, 0) {
		return fmt.Errorf("%w: %w", backend.ErrBadInput, dynamo.ErrInvalidState)
	}

	h.rhs = rhs
	h.n = len(y0)
	h.t = t0
	h.y = y0.Clone()
	h.ynew = dynamo.NewState(h.n)
	h.yerr = dynamo.NewState(h.n)
	h.fwork = dynamo.NewState(h.n)
	h.hnext = 0
	h.stats = backend.Stats{CurrentTime: t0}

	if h.method == dynamo.Stiff {
		h.stepper = newRosenbrock(h.n)
	} else {
		h.stepper = newDopri(h.n)
	}
	h.initialized = true
	return nil
}

func (h *Handle) SetTolerances(abs, rel float64) error {
	if err := h.usable(); err != nil {
		return err
	}
	if !(dynamo.Tolerances{Abs: abs, Rel: rel}).Valid() {
		return fmt.Errorf("%w: tolerances must be positive and finite (abs=%g rel=%g)", backend.ErrBadInput, abs, rel)
	}
	h.abs, h.rel = abs, rel
	h.tolSet = true
	return nil
}

func (h *Handle) AttachLinearSolver(n int) (backend.Resource, backend.Resource, error) {
	if err := h.usable(); err != nil {
		return nil, nil, err
	}
	if h.method != dynamo.Stiff {
		return nil, nil, fmt.Errorf("%w: %v method takes no linear solver", backend.ErrBadInput, h.method)
	}
	if n != h.n {
		return nil, nil, fmt.Errorf("%w: linear solver size %d, system size %d", backend.ErrBadInput, n, h.n)
	}
	if h.ls != nil && !h.ls.isReleased() {
		return nil, nil, fmt.Errorf("%w: linear solver already attached", backend.ErrBadInput)
	}

	jac := NewJacobian(n)
	ls, err := NewDenseSolver(jac)
	if err != nil {
		return nil, nil, err
	}
	h.jac, h.ls = jac, ls
	return ls, jac, nil
}

func (h *Handle) SetUserData(data any) error {
	if h.released {
		return backend.ErrReleased
	}
	h.data = data
	return nil
}

func (h *Handle) SetMaxSteps(n int) error {
	if h.released {
		return backend.ErrReleased
	}
	if n <= 0 {
		return fmt.Errorf("%w: max steps must be positive, got %d", backend.ErrBadInput, n)
	}
	h.maxSteps = n
	return nil
}

func (h *Handle) Reinit(t0 float64, y0 dynamo.State) error {
	if err := h.usable(); err != nil {
		return err
	}
	if len(y0) != h.n {
		return fmt.Errorf("%w: state length %d, system size %d", backend.ErrBadInput, len(y0), h.n)
	}
	if !y0.IsValid() || math.IsNaN(t0) || math.IsInf(t0, 0) {
		return fmt.Errorf("%w: %w", backend.ErrBadInput, dynamo.ErrInvalidState)
	}
	h.t = t0
	copy(h.y, y0)
	h.hnext = 0
	h.stats = backend.Stats{CurrentTime: t0}
	return nil
}

func (h *Handle) Stats() backend.Stats {
	return h.stats
}

// Release drops every engine-internal buffer. The Jacobian and linear
// solver handed out by AttachLinearSolver belong to the caller and are only
// detached here.
func (h *Handle) Release() error {
	if h.released {
		return backend.ErrReleased
	}
	h.rhs = nil
	h.data = nil
	h.y, h.ynew, h.yerr, h.fwork = nil, nil, nil, nil
	h.stepper = nil
	h.jac, h.ls = nil, nil
	h.released = true
	return nil
}

func (h *Handle) usable() error {
	if h.released {
		return backend.ErrReleased
	}
	if !h.initialized {
		return backend.ErrNotInitialized
	}
	return nil
}

func (h *Handle) eval(t float64, y, dydt dynamo.State) error {
	h.stats.RHSEvals++
	if err := h.rhs(t, y, dydt, h.data); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrRHSFailure, err)
	}
	return nil
}
