package multistep

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/dynamo"
)

var sqrtEps = math.Sqrt(epsilon)

// Jacobian holds df/dy as a dense n×n matrix together with df/dt, both
// approximated by forward differences.
type Jacobian struct {
	m    *mat.Dense
	dfdt dynamo.State
	fcol dynamo.State
	n    int
}

func NewJacobian(n int) *Jacobian {
	return &Jacobian{
		m:    mat.NewDense(n, n, nil),
		dfdt: dynamo.NewState(n),
		fcol: dynamo.NewState(n),
		n:    n,
	}
}

func (j *Jacobian) Dim() int { return j.n }

// Matrix returns the current df/dy, or nil once released.
func (j *Jacobian) Matrix() mat.Matrix {
	if j.m == nil {
		return nil
	}
	return j.m
}

// Eval fills the Jacobian around (t, y). f0 must hold f(t, y); work is
// clobbered.
func (j *Jacobian) Eval(f func(t float64, y, dydt dynamo.State) error, t float64, y, f0, work dynamo.State) error {
	if j.isReleased() {
		return backend.ErrReleased
	}

	copy(work, y)
	for c := 0; c < j.n; c++ {
		work[c] = y[c] + sqrtEps*math.Max(math.Abs(y[c]), 1e-5)
		d := work[c] - y[c]
		if err := f(t, work, j.fcol); err != nil {
			return err
		}
		for r := 0; r < j.n; r++ {
			j.m.Set(r, c, (j.fcol[r]-f0[r])/d)
		}
		work[c] = y[c]
	}

	dt := sqrtEps * math.Max(math.Abs(t), 1e-5)
	if err := f(t+dt, y, j.fcol); err != nil {
		return err
	}
	for r := 0; r < j.n; r++ {
		j.dfdt[r] = (j.fcol[r] - f0[r]) / dt
	}
	return nil
}

func (j *Jacobian) Release() error {
	if j.isReleased() {
		return backend.ErrReleased
	}
	j.m = nil
	j.dfdt, j.fcol = nil, nil
	return nil
}

func (j *Jacobian) isReleased() bool {
	return j == nil || j.m == nil
}

// DenseSolver factorizes the Rosenbrock iteration matrix gamma*I - J with
// LU and solves against it.
type DenseSolver struct {
	jac      *Jacobian
	a        *mat.Dense
	lu       *mat.LU
	x, b     *mat.VecDense
	factored bool
}

func NewDenseSolver(jac *Jacobian) (*DenseSolver, error) {
	if jac.isReleased() {
		return nil, fmt.Errorf("%w: jacobian unavailable", backend.ErrBadInput)
	}
	n := jac.n
	return &DenseSolver{
		jac: jac,
		a:   mat.NewDense(n, n, nil),
		lu:  &mat.LU{},
		x:   mat.NewVecDense(n, nil),
		b:   mat.NewVecDense(n, nil),
	}, nil
}

func (s *DenseSolver) Setup(gamma float64) error {
	if s.isReleased() || s.jac.isReleased() {
		return backend.ErrReleased
	}

	s.a.Scale(-1, s.jac.m)
	n := s.jac.n
	for i := 0; i < n; i++ {
		s.a.Set(i, i, s.a.At(i, i)+gamma)
	}

	s.lu.Factorize(s.a)
	if cond := s.lu.Cond(); math.IsInf(cond, 1) || math.IsNaN(cond) {
		s.factored = false
		return backend.ErrSingular
	}
	s.factored = true
	return nil
}

// Solve writes the solution of (gamma*I - J) x = b into dst. Ill
// conditioning is tolerated; exact singularity is not.
func (s *DenseSolver) Solve(dst, b dynamo.State) error {
	if s.isReleased() {
		return backend.ErrReleased
	}
	if !s.factored {
		return fmt.Errorf("%w: solve before factorization", backend.ErrBadInput)
	}

	copy(s.b.RawVector().Data, b)
	if err := s.lu.SolveVecTo(s.x, false, s.b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("%w: %w", backend.ErrSingular, err)
		}
	}
	copy(dst, s.x.RawVector().Data)
	return nil
}

func (s *DenseSolver) Release() error {
	if s.isReleased() {
		return backend.ErrReleased
	}
	s.jac = nil
	s.a, s.lu = nil, nil
	s.x, s.b = nil, nil
	s.factored = false
	return nil
}

func (s *DenseSolver) isReleased() bool {
	return s == nil || s.lu == nil
}
