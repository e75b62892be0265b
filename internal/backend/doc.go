// Package backend defines the capability boundary between a solver session
// and the numerical engine that actually advances an ODE system.
//
// A [Backend] creates one [Handle] per session. The handle owns the
// engine-internal state: it is initialized once, configured with tolerances
// and (for stiff methods) a linear solver, advanced to requested output
// times, reinitialized between scenarios and finally released.
//
// Concrete engines register themselves by name:
//
//	import _ "github.com/san-kum/ivpsolve/internal/backend/multistep"
//
//	b, err := backend.Get("multistep")
//
// Handles are not safe for concurrent use.
package backend
