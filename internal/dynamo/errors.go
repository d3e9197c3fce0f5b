package dynamo

import "errors"

// Domain errors for step integration.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched buffer sizes.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrNoConvergence indicates the iteration budget was exhausted.
	ErrNoConvergence = errors.New("dynamo: nonlinear solver did not converge")

	// ErrDiverged indicates the residual norm diverged.
	ErrDiverged = errors.New("dynamo: simulation diverged")

	// ErrFactor indicates the linear system could not be factorized.
	ErrFactor = errors.New("dynamo: matrix factorization failed")

	// ErrChangedEquationStructure is raised by assembly when the sparsity or
	// topology of the system changed during an evaluation.
	ErrChangedEquationStructure = errors.New("dynamo: equation structure changed")

	// ErrUnknownDofOrder indicates a dof that is neither differential nor algebraic.
	ErrUnknownDofOrder = errors.New("dynamo: unknown dof order")

	// ErrNotImplemented indicates an unsupported problem classification.
	ErrNotImplemented = errors.New("dynamo: not implemented")

	// ErrUnbound indicates an integrator was used outside of Advance.
	ErrUnbound = errors.New("dynamo: no state bound to integrator")

	// ErrHistoryTooShort indicates fewer previous states than the method needs.
	ErrHistoryTooShort = errors.New("dynamo: not enough previous states")
)

// Kind is the recovery class of an error.
type Kind int

const (
	// KindNone is the class of a nil error.
	KindNone Kind = iota
	// KindRetryable numerical failures may succeed with different coefficients.
	KindRetryable
	// KindStructural means the equations changed; the same step may be retried.
	KindStructural
	// KindFatal errors are configuration errors and are never retried.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRetryable:
		return "retryable"
	case KindStructural:
		return "structural"
	default:
		return "fatal"
	}
}

// KindOf classifies err. Errors outside the taxonomy are fatal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoConvergence), errors.Is(err, ErrDiverged), errors.Is(err, ErrFactor):
		return KindRetryable
	case errors.Is(err, ErrChangedEquationStructure):
		return KindStructural
	default:
		return KindFatal
	}
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return e.Wrapped.Error()
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
