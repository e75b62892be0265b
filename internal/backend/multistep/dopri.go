package multistep

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

type dopri struct {
	k1, k2, k3, k4, k5, k6, k7 dynamo.State
	scratch                    dynamo.State
}

func newDopri(n int) *dopri {
	return &dopri{
		k1:      dynamo.NewState(n),
		k2:      dynamo.NewState(n),
		k3:      dynamo.NewState(n),
		k4:      dynamo.NewState(n),
		k5:      dynamo.NewState(n),
		k6:      dynamo.NewState(n),
		k7:      dynamo.NewState(n),
		scratch: dynamo.NewState(n),
	}
}

func (d *dopri) errorOrder() float64 { return 5 }

func (d *dopri) attempt(h *Handle, t, dt float64, x, xNew, xErr dynamo.State) error {
	n := len(x)

	if err := h.eval(t, x, d.k1); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		d.scratch[i] = x[i] + dt*b21*d.k1[i]
	}
	if err := h.eval(t+a2*dt, d.scratch, d.k2); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		d.scratch[i] = x[i] + dt*(b31*d.k1[i]+b32*d.k2[i])
	}
	if err := h.eval(t+a3*dt, d.scratch, d.k3); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		d.scratch[i] = x[i] + dt*(b41*d.k1[i]+b42*d.k2[i]+b43*d.k3[i])
	}
	if err := h.eval(t+a4*dt, d.scratch, d.k4); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		d.scratch[i] = x[i] + dt*(b51*d.k1[i]+b52*d.k2[i]+b53*d.k3[i]+b54*d.k4[i])
	}
	if err := h.eval(t+a5*dt, d.scratch, d.k5); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		d.scratch[i] = x[i] + dt*(b61*d.k1[i]+b62*d.k2[i]+b63*d.k3[i]+b64*d.k4[i]+b65*d.k5[i])
	}
	if err := h.eval(t+dt, d.scratch, d.k6); err != nil {
		return err
	}

	copy(xNew, x)
	floats.AddScaled(xNew, dt*c1, d.k1)
	floats.AddScaled(xNew, dt*c3, d.k3)
	floats.AddScaled(xNew, dt*c4, d.k4)
	floats.AddScaled(xNew, dt*c5, d.k5)
	floats.AddScaled(xNew, dt*c6, d.k6)

	if err := h.eval(t+dt, xNew, d.k7); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		xErr[i] = dt * (dc1*d.k1[i] + dc3*d.k3[i] + dc4*d.k4[i] + dc5*d.k5[i] + dc6*d.k6[i] + dc7*d.k7[i])
	}
	return nil
}
