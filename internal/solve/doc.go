// Package solve provides the stiff-ODE integration engine for compartmental
// models.
//
// The package defines the fundamental interfaces and types for implicit
// integration of mass-balance systems (dX/dt = f(X, t)):
//
//   - [State]: vector of compartment quantities
//   - [System]: derivative and Jacobian-vector product of a model
//   - [EventSource]: root functions marking discrete transitions
//   - [BDF]: variable-step, variable-order implicit multistep solver
//
// The Newton iteration inside each BDF step is matrix-free: linear
// sub-problems are solved by GMRES using only [System.JacVec], so the
// Jacobian is never materialized.
//
// # Example
//
//	sys, y0, _ := mdl.Compile(params)
//	solver := solve.NewBDF(solve.DefaultConfig())
//	result, err := solver.Integrate(ctx, sys, y0, 0, 24.0)
//
// # Thread safety
//
// A BDF instance carries per-run state and is NOT safe for concurrent use.
// Independent runs share nothing; run them on separate instances.
package solve
