package models

import (
	"fmt"
	"math"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

// Exponential is the decoupled linear system y_i' = k_i y_i with exact
// solution y_i(t) = y_i(0) exp(k_i t).
type Exponential struct {
	n     int
	names []string
}

func NewExponential(n int) *Exponential {
	if n < 1 {
		n = 1
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("k%d", i+1)
	}
	return &Exponential{n: n, names: names}
}

func (e *Exponential) Name() string { return "exponential" }

func (e *Exponential) Description() string {
	return "decoupled growth y_i' = k_i y_i"
}

func (e *Exponential) Dim() int { return e.n }

func (e *Exponential) Method() dynamo.Method { return dynamo.Stiff }

func (e *Exponential) DefaultState() dynamo.State {
	y := dynamo.NewState(e.n)
	for i := range y {
		y[i] = 1
	}
	return y
}

func (e *Exponential) ParamNames() []string { return e.names }

// DefaultParams gives rates 1, 2, ..., n.
func (e *Exponential) DefaultParams() []float64 {
	k := make([]float64, e.n)
	for i := range k {
		k[i] = float64(i + 1)
	}
	return k
}

func (e *Exponential) RHS(_ float64, y, dydt dynamo.State, data any) error {
	k, err := params(data, e.n)
	if err != nil {
		return err
	}
	for i := range y {
		dydt[i] = k[i] * y[i]
	}
	return nil
}

// Exact evaluates the closed-form solution from y0 at time t.
func (e *Exponential) Exact(t float64, y0 dynamo.State, k []float64) dynamo.State {
	out := dynamo.NewState(len(y0))
	for i := range y0 {
		out[i] = y0[i] * math.Exp(k[i]*t)
	}
	return out
}
