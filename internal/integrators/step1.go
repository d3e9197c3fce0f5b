package integrators

import (
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// Step1Method is a single-step predictor-corrector scheme. The predicted
// state of a differential DOF must depend on its predicted derivative
// through the B0Differential returned by SetCoef, and likewise for the
// algebraic integral and B0Algebraic.
type Step1Method interface {
	Name() string
	SetCoef(dt, alpha float64, change dynamo.StepChange) Coef
	PredDer(xm1, xpm1 float64) float64
	PredState(xm1, xp, xpm1 float64) float64
	PredDerAlg(xim1, xm1 float64) float64
	PredStateAlg(xim1, x, xm1 float64) float64
}

// Step1Integrator predicts from the latest converged state only.
type Step1Integrator struct {
	StepN
	method Step1Method
}

var _ Integrator = (*Step1Integrator)(nil)

func NewStep1(m Step1Method, p Params, opts ...Option) *Step1Integrator {
	return &Step1Integrator{StepN: newStepN(p, 1, opts), method: m}
}

func (s *Step1Integrator) Method() Step1Method { return s.method }

func (s *Step1Integrator) Advance(d Driver, req StepRequest) (dynamo.Stats, error) {
	return s.advance(d, req, s.method.SetCoef, s.predictDof)
}

func (s *Step1Integrator) predictDof(i int, order dynamo.DofOrder, h *dynamo.History) error {
	xm1, xpm1 := h.X(0)[i], h.XPrime(0)[i]
	switch order {
	case dynamo.Differential:
		xp := s.method.PredDer(xm1, xpm1)
		s.ws.xp[i] = xp
		s.ws.x[i] = s.method.PredState(xm1, xp, xpm1)
	case dynamo.Algebraic:
		// xpm1 holds the integral of the algebraic variable.
		x := s.method.PredDerAlg(xpm1, xm1)
		s.ws.x[i] = x
		s.ws.xp[i] = s.method.PredStateAlg(xpm1, x, xm1)
	default:
		return errors.Wrapf(dynamo.ErrUnknownDofOrder, "predict dof %d (%v)", i, order)
	}
	return nil
}
