// Package models holds ready-made right-hand sides for the solver session.
// Each model binds its parameters as a []float64 blob ordered like
// ParamNames, so swapping parameters between runs is a BindParameters call.
package models

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

var (
	ErrUnknownParam = errors.New("models: unknown parameter")
	ErrBadParams    = errors.New("models: malformed parameter blob")
)

type Model interface {
	Name() string
	Description() string
	Dim() int
	// Method is the integration method the model is usually solved with.
	Method() dynamo.Method
	DefaultState() dynamo.State
	ParamNames() []string
	DefaultParams() []float64
	RHS(t float64, y, dydt dynamo.State, data any) error
}

// Params resolves overrides against the model defaults into the data blob
// its RHS expects.
func Params(m Model, overrides map[string]float64) ([]float64, error) {
	names := m.ParamNames()
	p := append([]float64(nil), m.DefaultParams()...)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		i := indexOf(names, k)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s has no parameter %q (have %v)", ErrUnknownParam, m.Name(), k, names)
		}
		p[i] = overrides[k]
	}
	return p, nil
}

// Bind returns the binding for m with overrides applied.
func Bind(m Model, overrides map[string]float64) (dynamo.Binding, error) {
	p, err := Params(m, overrides)
	if err != nil {
		return dynamo.Binding{}, err
	}
	return dynamo.Binding{F: m.RHS, Data: p}, nil
}

// ParamMap is the inverse of Params.
func ParamMap(m Model, p []float64) map[string]float64 {
	out := make(map[string]float64, len(p))
	for i, name := range m.ParamNames() {
		if i < len(p) {
			out[name] = p[i]
		}
	}
	return out
}

func params(data any, want int) ([]float64, error) {
	p, ok := data.([]float64)
	if !ok {
		return nil, fmt.Errorf("%w: parameters are %T, want []float64", ErrBadParams, data)
	}
	if len(p) != want {
		return nil, fmt.Errorf("%w: %d parameters, want %d", ErrBadParams, len(p), want)
	}
	return p, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
