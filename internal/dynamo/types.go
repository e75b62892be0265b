package dynamo

import (
	"fmt"
	"math"
	"strings"
)

type State []float64

func NewState(n int) State {
	return make(State, n)
}

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// RHSFunc evaluates dy/dt at (t, y) into dydt. data is the parameter blob
// bound to the session at the time of the call. A non-nil error is treated
// as an unrecoverable evaluation failure.
type RHSFunc func(t float64, y, dydt State, data any) error

// Binding pairs a right-hand side with its parameter blob.
type Binding struct {
	F    RHSFunc
	Data any
}

// Eval calls the bound function with the bound data.
func (b Binding) Eval(t float64, y, dydt State) error {
	return b.F(t, y, dydt, b.Data)
}

// Method selects the integration family. It is fixed when a session is
// created.
type Method int

const (
	NonStiff Method = iota
	Stiff
)

func (m Method) String() string {
	switch m {
	case Stiff:
		return "stiff"
	case NonStiff:
		return "nonstiff"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// NeedsLinearSolver reports whether the method solves a linear system per
// step.
func (m Method) NeedsLinearSolver() bool {
	return m == Stiff
}

// ParseMethod accepts "stiff"/"bdf" and "nonstiff"/"adams".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stiff", "bdf", "implicit":
		return Stiff, nil
	case "nonstiff", "non-stiff", "adams", "explicit":
		return NonStiff, nil
	default:
		return 0, fmt.Errorf("%w: unknown method %q", ErrUnknownMethod, s)
	}
}

type Tolerances struct {
	Abs float64 `yaml:"abs" json:"abs"`
	Rel float64 `yaml:"rel" json:"rel"`
}

// Valid reports whether both tolerances are positive and finite.
func (t Tolerances) Valid() bool {
	return isPositiveFinite(t.Abs) && isPositiveFinite(t.Rel)
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
