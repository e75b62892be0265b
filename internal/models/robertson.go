package models

import "github.com/san-kum/ivpsolve/internal/dynamo"

// Robertson is the classic stiff chemical kinetics problem:
//
//	y1' = -k1 y1 + k3 y2 y3
//	y2' =  k1 y1 - k3 y2 y3 - k2 y2^2
//	y3' =  k2 y2^2
//
// The total y1+y2+y3 is conserved.
type Robertson struct{}

func NewRobertson() *Robertson { return &Robertson{} }

func (r *Robertson) Name() string               { return "robertson" }
func (r *Robertson) Description() string        { return "Robertson chemical kinetics (stiff)" }
func (r *Robertson) Dim() int                   { return 3 }
func (r *Robertson) Method() dynamo.Method      { return dynamo.Stiff }
func (r *Robertson) DefaultState() dynamo.State { return dynamo.State{1, 0, 0} }
func (r *Robertson) ParamNames() []string       { return []string{"k1", "k2", "k3"} }
func (r *Robertson) DefaultParams() []float64   { return []float64{0.04, 3e7, 1e4} }

func (r *Robertson) RHS(_ float64, y, dydt dynamo.State, data any) error {
	k, err := params(data, 3)
	if err != nil {
		return err
	}
	a := k[0] * y[0]
	b := k[2] * y[1] * y[2]
	c := k[1] * y[1] * y[1]
	dydt[0] = -a + b
	dydt[1] = a - b - c
	dydt[2] = c
	return nil
}
