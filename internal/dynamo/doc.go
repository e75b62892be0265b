// Package dynamo provides the core primitives shared by solver sessions and
// integration backends.
//
// The package defines the data that flows across the session/backend
// boundary:
//
//   - [State]: fixed-length vector holding the system state at one time
//   - [RHSFunc]: right-hand side of dy/dt = f(t, y, data)
//   - [Binding]: an RHSFunc plus its opaque parameter blob
//   - [Method]: integration family (Stiff or NonStiff)
//
// # Example
//
//	decay := func(t float64, y, dydt dynamo.State, data any) error {
//	    dydt[0] = -data.(float64) * y[0]
//	    return nil
//	}
//	b := dynamo.Binding{F: decay, Data: 0.5}
//
// # Thread Safety
//
// Values in this package carry no synchronization. A State handed to a
// session is copied; the session never aliases caller memory.
package dynamo
