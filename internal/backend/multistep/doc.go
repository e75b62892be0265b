// Package multistep is the built-in integration engine behind
// [backend.Handle].
//
// Two families are provided, selected by [dynamo.Method]:
//
//   - NonStiff: explicit Dormand–Prince 5(4) with local extrapolation.
//   - Stiff: linearly implicit Rosenbrock 4(3) (Shampine's parameter set)
//     with a finite-difference dense Jacobian and an LU-factorized iteration
//     matrix, both backed by gonum.
//
// Both families run under the same controller: weighted RMS error norm
// with per-component weights abs + rel*|y|, and a step that is clamped so
// every advance lands exactly on the requested output time.
//
// Importing the package registers it with the backend registry under the
// name "multistep".
package multistep
