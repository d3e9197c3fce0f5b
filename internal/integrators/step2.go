package integrators

import (
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// Step2Method is a two-step predictor-corrector scheme.
type Step2Method interface {
	Name() string
	SetCoef(dt, alpha float64, change dynamo.StepChange) Coef
	PredDer(xm1, xm2, xpm1, xpm2 float64) float64
	PredState(xm1, xm2, xp, xpm1, xpm2 float64) float64
	PredDerAlg(xim1, xm1, xm2 float64) float64
	PredStateAlg(xim1, x, xm1, xm2 float64) float64
}

// Step2Integrator predicts from the two latest converged states.
type Step2Integrator struct {
	StepN
	method Step2Method
}

var _ Integrator = (*Step2Integrator)(nil)

func NewStep2(m Step2Method, p Params, opts ...Option) *Step2Integrator {
	return &Step2Integrator{StepN: newStepN(p, 2, opts), method: m}
}

func (s *Step2Integrator) Method() Step2Method { return s.method }

func (s *Step2Integrator) Advance(d Driver, req StepRequest) (dynamo.Stats, error) {
	return s.advance(d, req, s.method.SetCoef, s.predictDof)
}

func (s *Step2Integrator) predictDof(i int, order dynamo.DofOrder, h *dynamo.History) error {
	xm1, xpm1 := h.X(0)[i], h.XPrime(0)[i]
	xm2, xpm2 := h.X(1)[i], h.XPrime(1)[i]
	switch order {
	case dynamo.Differential:
		xp := s.method.PredDer(xm1, xm2, xpm1, xpm2)
		s.ws.xp[i] = xp
		s.ws.x[i] = s.method.PredState(xm1, xm2, xp, xpm1, xpm2)
	case dynamo.Algebraic:
		x := s.method.PredDerAlg(xpm1, xm1, xm2)
		s.ws.x[i] = x
		s.ws.xp[i] = s.method.PredStateAlg(xpm1, x, xm1, xm2)
	default:
		return errors.Wrapf(dynamo.ErrUnknownDofOrder, "predict dof %d (%v)", i, order)
	}
	return nil
}
