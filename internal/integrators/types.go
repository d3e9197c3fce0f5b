package integrators

import (
	"github.com/go-kit/log"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// Driver gives an integrator access to the solvers owned by the outer
// simulation loop.
type Driver interface {
	NonlinearSolver() dynamo.NonlinearSolver
	SolutionManager() dynamo.SolutionManager
}

// DataManager is the model layer a forward integrator drives: it assembles
// residual and Jacobian at the linked state and reacts to lifecycle hooks.
type DataManager interface {
	Dofs() []dynamo.Dof
	Time() float64
	LinkToSolution(x, xp dynamo.State)
	AssRes(res dynamo.State, coef float64) error
	AssJac(jac *mat.Dense, coef float64) error
	Update()
	DerivativesUpdate()
	AfterPredict() error
	AfterConvergence()
	FDJac() bool
}

// InverseDataManager is the model layer of an inverse dynamics problem.
type InverseDataManager interface {
	Dofs() []dynamo.Dof
	Time() float64
	ProblemType() ProblemType
	LinkToSolutionID(x, xp, xpp, lambda dynamo.State)
	AssRes(res dynamo.State) error
	AssConstrRes(res dynamo.State, phase Phase) error
	AssConstrJac(jac *mat.Dense, phase Phase) error
	UpdatePhase(phase Phase)
	IDAfterConvergence()
}

// Integrator is the common contract of every step integrator.
type Integrator interface {
	dynamo.Problem
	Advance(d Driver, req StepRequest) (dynamo.Stats, error)
	NumPreviousStates() int
	NumUnknownStates() int
	MaxIters() int
	Tol() float64
	SolTol() float64
}

// StepRequest carries everything one Advance call needs. X and XPrime
// (and, for inverse dynamics, XPrimePrime and Lambda) are owned by the
// caller and hold the result on return.
type StepRequest struct {
	TStep       float64
	Alpha       float64
	Change      dynamo.StepChange
	History     *dynamo.History
	X           dynamo.State
	XPrime      dynamo.State
	XPrimePrime dynamo.State
	Lambda      dynamo.State
}

// Coef holds the scalar coefficients of the current step.
type Coef struct {
	B0Differential float64
	B0Algebraic    float64
}

// Params configures the iteration limits shared by all integrators.
type Params struct {
	MaxIters   int
	Tol        float64
	SolTol     float64
	ModResTest bool
}

// PredictionReport is a snapshot of the predicted state, taken before the
// first residual evaluation of a step.
type PredictionReport struct {
	Time       float64
	Dofs       []dynamo.Dof
	X          dynamo.State
	XPrime     dynamo.State
	XPrev      []dynamo.State
	XPrimePrev []dynamo.State
}

type Option func(*base)

func WithLogger(l log.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPredictionHook registers fn to receive a PredictionReport after every
// prediction. Reports are only produced once OutputTypes(true) is set.
func WithPredictionHook(fn func(PredictionReport)) Option {
	return func(b *base) { b.onPredict = fn }
}
