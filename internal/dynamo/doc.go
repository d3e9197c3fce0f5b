// Package dynamo provides the core primitives shared by the step integrators
// and the solvers that drive them.
//
// The package defines the fundamental types for advancing a system of
// differential-algebraic equations (DAE) from one time step to the next:
//
//   - [State]: vector of degrees of freedom (position, derivative, ...)
//   - [Dof]: per-DOF metadata, tagged [Differential] or [Algebraic]
//   - [History]: bounded queue of previously accepted states
//   - [Problem]: what a nonlinear solver iterates on
//   - [NonlinearSolver], [SolutionManager]: external numerical collaborators
//
// # Example
//
//	h := dynamo.NewHistory(2)
//	h.Push(x0, xp0)
//	stats, err := nl.Solve(problem, 20, 1e-9, 0)
//	if dynamo.KindOf(err) == dynamo.KindRetryable {
//		// try again with a different coefficient
//	}
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent mutation. States are plain
// slices; callers own them and lend them to integrators for the duration of
// a single step.
package dynamo
