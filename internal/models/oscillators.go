package models

import (
	"math"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

// Pendulum is a damped pendulum. State: [theta, omega].
type Pendulum struct{}

func NewPendulum() *Pendulum { return &Pendulum{} }

func (p *Pendulum) Name() string               { return "pendulum" }
func (p *Pendulum) Description() string        { return "damped pendulum [theta, omega]" }
func (p *Pendulum) Dim() int                   { return 2 }
func (p *Pendulum) Method() dynamo.Method      { return dynamo.NonStiff }
func (p *Pendulum) DefaultState() dynamo.State { return dynamo.State{0.5, 0} }
func (p *Pendulum) ParamNames() []string       { return []string{"mass", "length", "damping", "gravity"} }
func (p *Pendulum) DefaultParams() []float64   { return []float64{1.0, 1.0, 0.1, 9.81} }

func (p *Pendulum) RHS(_ float64, y, dydt dynamo.State, data any) error {
	k, err := params(data, 4)
	if err != nil {
		return err
	}
	mass, length, damping, gravity := k[0], k[1], k[2], k[3]
	theta, omega := y[0], y[1]

	dydt[0] = omega
	dydt[1] = (-damping*omega - mass*gravity*length*math.Sin(theta)) / (mass * length * length)
	return nil
}

// Oscillator is a damped spring-mass system. State: [x, v].
type Oscillator struct{}

func NewOscillator() *Oscillator { return &Oscillator{} }

func (o *Oscillator) Name() string               { return "oscillator" }
func (o *Oscillator) Description() string        { return "damped spring-mass x'' = -(k x + c v)/m" }
func (o *Oscillator) Dim() int                   { return 2 }
func (o *Oscillator) Method() dynamo.Method      { return dynamo.NonStiff }
func (o *Oscillator) DefaultState() dynamo.State { return dynamo.State{1, 0} }
func (o *Oscillator) ParamNames() []string       { return []string{"mass", "stiffness", "damping"} }
func (o *Oscillator) DefaultParams() []float64   { return []float64{1.0, 10.0, 0.5} }

func (o *Oscillator) RHS(_ float64, y, dydt dynamo.State, data any) error {
	k, err := params(data, 3)
	if err != nil {
		return err
	}
	dydt[0] = y[1]
	dydt[1] = -(k[1]*y[0] + k[2]*y[1]) / k[0]
	return nil
}

// VanDerPol implements the Van der Pol oscillator. State: [x, y] where
// y = dx/dt:
//
//	dx/dt = y
//	dy/dt = mu(1 - x^2)y - x
//
// Large mu makes the problem stiff.
type VanDerPol struct{}

func NewVanDerPol() *VanDerPol { return &VanDerPol{} }

func (v *VanDerPol) Name() string               { return "vanderpol" }
func (v *VanDerPol) Description() string        { return "Van der Pol oscillator, stiff for large mu" }
func (v *VanDerPol) Dim() int                   { return 2 }
func (v *VanDerPol) Method() dynamo.Method      { return dynamo.Stiff }
func (v *VanDerPol) DefaultState() dynamo.State { return dynamo.State{2.0, 0.0} }
func (v *VanDerPol) ParamNames() []string       { return []string{"mu"} }
func (v *VanDerPol) DefaultParams() []float64   { return []float64{1.0} }

func (v *VanDerPol) RHS(_ float64, y, dydt dynamo.State, data any) error {
	k, err := params(data, 1)
	if err != nil {
		return err
	}
	x, xd := y[0], y[1]
	dydt[0] = xd
	dydt[1] = k[0]*(1-x*x)*xd - x
	return nil
}

type Lorenz struct{}

func NewLorenz() *Lorenz { return &Lorenz{} }

func (l *Lorenz) Name() string               { return "lorenz" }
func (l *Lorenz) Description() string        { return "Lorenz attractor" }
func (l *Lorenz) Dim() int                   { return 3 }
func (l *Lorenz) Method() dynamo.Method      { return dynamo.NonStiff }
func (l *Lorenz) DefaultState() dynamo.State { return dynamo.State{1.0, 1.0, 1.0} }
func (l *Lorenz) ParamNames() []string       { return []string{"sigma", "rho", "beta"} }
func (l *Lorenz) DefaultParams() []float64   { return []float64{10.0, 28.0, 8.0 / 3.0} }

func (l *Lorenz) RHS(_ float64, s, dydt dynamo.State, data any) error {
	k, err := params(data, 3)
	if err != nil {
		return err
	}
	dydt[0] = k[0] * (s[1] - s[0])
	dydt[1] = s[0]*(k[1]-s[2]) - s[1]
	dydt[2] = s[0]*s[1] - k[2]*s[2]
	return nil
}
