package models

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

func all() []Model {
	return []Model{NewExponential(2), NewPendulum(), NewOscillator(), NewVanDerPol(), NewLorenz(), NewRobertson()}
}

func TestModelsAreConsistent(t *testing.T) {
	for _, m := range all() {
		t.Run(m.Name(), func(t *testing.T) {
			if got := len(m.DefaultState()); got != m.Dim() {
				t.Errorf("default state length %d, dim %d", got, m.Dim())
			}
			if len(m.ParamNames()) != len(m.DefaultParams()) {
				t.Errorf("%d names for %d defaults", len(m.ParamNames()), len(m.DefaultParams()))
			}

			b, err := Bind(m, nil)
			if err != nil {
				t.Fatal(err)
			}
			dydt := dynamo.NewState(m.Dim())
			if err := b.Eval(0, m.DefaultState(), dydt); err != nil {
				t.Fatal(err)
			}
			if !dydt.IsValid() {
				t.Errorf("derivative at default state is not finite: %v", dydt)
			}
		})
	}
}

func TestRHSRejectsMalformedParams(t *testing.T) {
	for _, m := range all() {
		dydt := dynamo.NewState(m.Dim())
		if err := m.RHS(0, m.DefaultState(), dydt, "bogus"); !errors.Is(err, ErrBadParams) {
			t.Errorf("%s: expected ErrBadParams for wrong type, got %v", m.Name(), err)
		}
		if err := m.RHS(0, m.DefaultState(), dydt, []float64{}); !errors.Is(err, ErrBadParams) && len(m.DefaultParams()) > 0 {
			t.Errorf("%s: expected ErrBadParams for short blob, got %v", m.Name(), err)
		}
	}
}

func TestParamsOverrides(t *testing.T) {
	m := NewExponential(2)

	p, err := Params(m, map[string]float64{"k2": 1})
	if err != nil {
		t.Fatal(err)
	}
	if p[0] != 1 || p[1] != 1 {
		t.Errorf("expected [1 1], got %v", p)
	}
	if m.DefaultParams()[1] != 2 {
		t.Error("overrides must not touch the defaults")
	}

	_, err = Params(m, map[string]float64{"k3": 1})
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
}

func TestParamMap(t *testing.T) {
	m := NewLorenz()
	got := ParamMap(m, m.DefaultParams())
	if got["rho"] != 28 || len(got) != 3 {
		t.Errorf("unexpected map %v", got)
	}
}

func TestExponentialDerivative(t *testing.T) {
	m := NewExponential(3)
	dydt := dynamo.NewState(3)
	if err := m.RHS(0, dynamo.State{1, 2, 3}, dydt, []float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	want := dynamo.State{1, 4, 9}
	for i := range want {
		if dydt[i] != want[i] {
			t.Errorf("dydt[%d] = %f, want %f", i, dydt[i], want[i])
		}
	}

	exact := m.Exact(1, dynamo.State{1, 1, 1}, []float64{1, 2, 3})
	if math.Abs(exact[1]-math.Exp(2)) > 1e-12 {
		t.Errorf("exact solution wrong: %v", exact)
	}
}

func TestPendulumAtRest(t *testing.T) {
	m := NewPendulum()
	dydt := dynamo.NewState(2)
	if err := m.RHS(0, dynamo.State{0, 0}, dydt, m.DefaultParams()); err != nil {
		t.Fatal(err)
	}
	if dydt[0] != 0 || dydt[1] != 0 {
		t.Errorf("pendulum at rest should stay at rest, got %v", dydt)
	}
}

func TestOscillatorDisplaced(t *testing.T) {
	m := NewOscillator()
	dydt := dynamo.NewState(2)
	if err := m.RHS(0, dynamo.State{1, 0}, dydt, []float64{2, 10, 0}); err != nil {
		t.Fatal(err)
	}
	if dydt[0] != 0 {
		t.Errorf("velocity should be 0, got %f", dydt[0])
	}
	if math.Abs(dydt[1]+5) > 1e-12 {
		t.Errorf("expected acceleration -5, got %f", dydt[1])
	}
}

func TestRobertsonConservesMass(t *testing.T) {
	m := NewRobertson()
	dydt := dynamo.NewState(3)
	if err := m.RHS(0, dynamo.State{0.7, 1e-5, 0.3}, dydt, m.DefaultParams()); err != nil {
		t.Fatal(err)
	}
	if sum := dydt[0] + dydt[1] + dydt[2]; math.Abs(sum) > 1e-12 {
		t.Errorf("total derivative should vanish, got %g", sum)
	}
}

func TestVanDerPolLimit(t *testing.T) {
	m := NewVanDerPol()
	dydt := dynamo.NewState(2)
	if err := m.RHS(0, dynamo.State{1, 1}, dydt, []float64{1000}); err != nil {
		t.Fatal(err)
	}
	if dydt[0] != 1 || dydt[1] != -1 {
		t.Errorf("at x=1 the damping term vanishes, got %v", dydt)
	}
}
