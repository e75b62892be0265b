package session_test

import (
	"errors"
	"fmt"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/dynamo"
)

var errInjected = errors.New("injected")

// fakeBackend records every call made against its handles. Each field ending
// in Err makes the matching call fail.
type fakeBackend struct {
	calls []string

	createErr   error
	initErr     error
	tolErr      error
	attachErr   error
	userDataErr error
	reinitErr   error
	releaseErr  error

	// failAfter makes AdvanceTo fail for any tout above it when set.
	failAfter *float64

	handle *fakeHandle
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Create(method dynamo.Method) (backend.Handle, error) {
	b.calls = append(b.calls, "create")
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.handle = &fakeHandle{b: b}
	return b.handle, nil
}

func (b *fakeBackend) count(call string) int {
	n := 0
	for _, c := range b.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeResource struct {
	b    *fakeBackend
	name string
}

func (r *fakeResource) Release() error {
	r.b.calls = append(r.b.calls, "release-"+r.name)
	return nil
}

type fakeHandle struct {
	b    *fakeBackend
	t    float64
	data any
	y    dynamo.State
}

func (h *fakeHandle) Init(rhs dynamo.RHSFunc, t0 float64, y0 dynamo.State) error {
	h.b.calls = append(h.b.calls, "init")
	if h.b.initErr != nil {
		return h.b.initErr
	}
	h.t = t0
	h.y = y0.Clone()
	return nil
}

func (h *fakeHandle) SetTolerances(abs, rel float64) error {
	h.b.calls = append(h.b.calls, "tolerances")
	return h.b.tolErr
}

func (h *fakeHandle) AttachLinearSolver(n int) (backend.Resource, backend.Resource, error) {
	h.b.calls = append(h.b.calls, "attach")
	if h.b.attachErr != nil {
		return nil, nil, h.b.attachErr
	}
	return &fakeResource{b: h.b, name: "solver"}, &fakeResource{b: h.b, name: "jacobian"}, nil
}

func (h *fakeHandle) SetUserData(data any) error {
	h.b.calls = append(h.b.calls, "userdata")
	if h.b.userDataErr != nil {
		return h.b.userDataErr
	}
	h.data = data
	return nil
}

// AdvanceTo fills every component with tout.
func (h *fakeHandle) AdvanceTo(tout float64, yout dynamo.State) (float64, error) {
	h.b.calls = append(h.b.calls, "advance")
	if h.b.failAfter != nil && tout > *h.b.failAfter {
		return h.t, fmt.Errorf("%w: at %g", backend.ErrRHSFailure, tout)
	}
	for i := range yout {
		yout[i] = tout
	}
	h.t = tout
	return tout, nil
}

func (h *fakeHandle) Reinit(t0 float64, y0 dynamo.State) error {
	h.b.calls = append(h.b.calls, "reinit")
	if h.b.reinitErr != nil {
		return h.b.reinitErr
	}
	h.t = t0
	copy(h.y, y0)
	return nil
}

func (h *fakeHandle) Release() error {
	h.b.calls = append(h.b.calls, "release-handle")
	return h.b.releaseErr
}

func noopRHS(t float64, y, dydt dynamo.State, data any) error {
	return nil
}
