package multistep

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/dynamo"
)

// Rosenbrock 4(3) coefficients, Shampine's parameter set.
const (
	gam = 1.0 / 2.0

	ra21 = 2.0
	ra31 = 48.0 / 25.0
	ra32 = 6.0 / 25.0

	rc21 = -8.0
	rc31 = 372.0 / 25.0
	rc32 = 12.0 / 5.0
	rc41 = -112.0 / 125.0
	rc42 = -54.0 / 125.0
	rc43 = -2.0 / 5.0

	rb1 = 19.0 / 9.0
	rb2 = 1.0 / 2.0
	rb3 = 25.0 / 108.0
	rb4 = 125.0 / 108.0

	re1 = 17.0 / 54.0
	re2 = 7.0 / 36.0
	re3 = 0.0
	re4 = 125.0 / 108.0

	rc1x = 1.0 / 2.0
	rc2x = -3.0 / 2.0
	rc3x = 121.0 / 50.0
	rc4x = 29.0 / 250.0

	ra2x = 1.0
	ra3x = 3.0 / 5.0
)

type rosenbrock struct {
	g1, g2, g3, g4 dynamo.State
	f0, dydx, rhs  dynamo.State
	scratch        dynamo.State
}

func newRosenbrock(n int) *rosenbrock {
	return &rosenbrock{
		g1:      dynamo.NewState(n),
		g2:      dynamo.NewState(n),
		g3:      dynamo.NewState(n),
		g4:      dynamo.NewState(n),
		f0:      dynamo.NewState(n),
		dydx:    dynamo.NewState(n),
		rhs:     dynamo.NewState(n),
		scratch: dynamo.NewState(n),
	}
}

func (r *rosenbrock) errorOrder() float64 { return 4 }

func (r *rosenbrock) attempt(h *Handle, t, dt float64, y, yNew, yErr dynamo.State) error {
	jac, ls := h.jac, h.ls
	if jac == nil || ls == nil {
		return backend.ErrNoLinearSolver
	}
	n := len(y)

	if err := h.eval(t, y, r.f0); err != nil {
		return err
	}
	if err := jac.Eval(h.eval, t, y, r.f0, r.scratch); err != nil {
		return err
	}
	h.stats.JacobianEvals++

	if err := ls.Setup(1 / (gam * dt)); err != nil {
		return err
	}
	h.stats.Factorizations++

	dfdt := jac.dfdt

	for i := 0; i < n; i++ {
		r.rhs[i] = r.f0[i] + dt*rc1x*dfdt[i]
	}
	if err := ls.Solve(r.g1, r.rhs); err != nil {
		return err
	}

	floats.AddScaledTo(r.scratch, y, ra21, r.g1)
	if err := h.eval(t+ra2x*dt, r.scratch, r.dydx); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		r.rhs[i] = r.dydx[i] + dt*rc2x*dfdt[i] + rc21*r.g1[i]/dt
	}
	if err := ls.Solve(r.g2, r.rhs); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + ra31*r.g1[i] + ra32*r.g2[i]
	}
	if err := h.eval(t+ra3x*dt, r.scratch, r.dydx); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		r.rhs[i] = r.dydx[i] + dt*rc3x*dfdt[i] + (rc31*r.g1[i]+rc32*r.g2[i])/dt
	}
	if err := ls.Solve(r.g3, r.rhs); err != nil {
		return err
	}

	// the fourth stage reuses the third evaluation
	for i := 0; i < n; i++ {
		r.rhs[i] = r.dydx[i] + dt*rc4x*dfdt[i] + (rc41*r.g1[i]+rc42*r.g2[i]+rc43*r.g3[i])/dt
	}
	if err := ls.Solve(r.g4, r.rhs); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		yNew[i] = y[i] + rb1*r.g1[i] + rb2*r.g2[i] + rb3*r.g3[i] + rb4*r.g4[i]
		yErr[i] = re1*r.g1[i] + re2*r.g2[i] + re3*r.g3[i] + re4*r.g4[i]
	}
	return nil
}
