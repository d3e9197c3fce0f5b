package dynamo

import "gonum.org/v1/gonum/mat"

// Scaler provides the per-equation scale coefficients used by convergence
// tests.
type Scaler interface {
	ScaleCoef(i int) float64
}

// UniformScale scales every equation by the same factor.
type UniformScale float64

func (u UniformScale) ScaleCoef(int) float64 { return float64(u) }

// Problem is what a nonlinear solver iterates on. Residual and Jacobian
// assemble into caller-provided storage; Update applies a solver increment.
// The Jacobian is the derivative of the residual with respect to the
// increment, with opposite sign, so that J*sol = res.
type Problem interface {
	Residual(res State) error
	Jacobian(jac *mat.Dense) error
	Update(sol State) error
	EvalProd(tau float64, f0, w, z State) error
	TestScale(s Scaler) (scale, algebraicScale float64)
}

// Stats reports what a nonlinear solve did. It is meaningful on failure too.
type Stats struct {
	Iters  int
	Err    float64
	SolErr float64
}

// NonlinearSolver drives a Newton-type iteration over a Problem. Failures
// are reported as ErrNoConvergence, ErrDiverged or ErrFactor.
type NonlinearSolver interface {
	Solve(p Problem, maxIters int, tol, solTol float64) (Stats, error)
}

// SolutionManager owns the linear system J*sol = res.
type SolutionManager interface {
	Matrix() *mat.Dense
	Res() State
	Sol() State
	MatrReset()
	Solve() error
	SolveT() error
}
