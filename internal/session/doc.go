// Package session implements the solver session: a stateful wrapper that
// drives an integration backend through a fixed configuration order and then
// serves repeated integrations.
//
// Stages, in required order:
//
//	Created → Initialized → ToleranceSet → Prepared (Stiff only) → Ready
//
// A session is Ready once the mandatory stages for its method have
// completed. Integrate and Reset require Ready; Reset rewinds time and state
// without rebuilding tolerances or the linear solver, so one prepared
// session can run many scenarios.
//
// # Example
//
//	b, _ := backend.Default()
//	s, err := session.New(b, dynamo.Stiff)
//	if err != nil {
//	    return err
//	}
//	defer s.Destroy()
//
//	_ = s.Configure(dynamo.Binding{F: rhs, Data: params}, 0, dynamo.State{1, 1})
//	_ = s.SetTolerances(1e-8, 1e-8)
//	_ = s.Prepare()
//	res, err := s.Integrate([]float64{0.1, 0.2, 0.3})
//
// # Errors
//
// Configuration failures reported by the backend are terminal: the session
// moves to Failed and only Destroy is accepted. Integration failures are
// not: the session keeps the last output time it reached and stays Ready.
// Argument problems detected before any backend call (bad tolerances,
// wrong state length, unordered output times) leave the session untouched.
//
// # Thread Safety
//
// A Session is NOT safe for concurrent use. Callers sharing a session across
// goroutines must serialize every call.
package session
