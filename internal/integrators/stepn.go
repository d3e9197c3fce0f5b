package integrators

import (
	"fmt"
	"math"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

const fdStep = 1e-3

// StepN holds what every predictor-corrector integrator shares: residual
// and Jacobian assembly with the current b0, the corrector update and the
// prediction driver. Concrete integrators supply the predictor.
type StepN struct {
	base
	dm   DataManager
	ws   workspace
	mf   matrixFree
	ts   testScaler
	coef Coef
}

func newStepN(p Params, steps int, opts []Option) StepN {
	return StepN{
		base: newBase(p, steps, 1, opts),
		ts:   testScaler{enabled: p.ModResTest},
	}
}

// Starter returns a Crank-Nicolson integrator with the same parameters,
// logger and prediction reporting, for the steps taken while the history is
// shorter than NumPreviousStates.
func (s *StepN) Starter() *Step1Integrator {
	st := NewStep1(NewCrankNicolson(), Params{
		MaxIters:   s.maxIters,
		Tol:        s.tol,
		SolTol:     s.solTol,
		ModResTest: s.ts.enabled,
	})
	st.logger = s.logger
	st.outputPred = s.outputPred
	st.onPredict = s.onPredict
	return st
}

// SetDataManager binds the model layer. It must be called before Advance.
func (s *StepN) SetDataManager(dm DataManager) {
	s.dm = dm
	s.dofs = dm.Dofs()
}

// Coef returns the coefficients set by the latest prediction.
func (s *StepN) Coef() Coef { return s.coef }

func (s *StepN) Residual(res dynamo.State) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "residual")
	}
	return s.dm.AssRes(res, s.coef.B0Differential)
}

func (s *StepN) Jacobian(jac *mat.Dense) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "jacobian")
	}
	if err := s.dm.AssJac(jac, s.coef.B0Differential); err != nil {
		return err
	}
	if s.dm.FDJac() {
		fd, err := s.FDJacobian()
		if err != nil {
			return err
		}
		level.Debug(s.logger).Log(
			"msg", "jacobian check",
			"t", s.dm.Time(),
			"analytic", fmt.Sprintf("%v", mat.Formatted(jac, mat.Squeeze())),
			"fd", fmt.Sprintf("%v", mat.Formatted(fd, mat.Squeeze())),
		)
	}
	return nil
}

// Update applies a corrector increment: differential DOFs take it on the
// derivative, algebraic DOFs on the state.
func (s *StepN) Update(sol dynamo.State) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "update")
	}
	if len(sol) != len(s.dofs) {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "increment of size %d", len(sol))
	}
	for i, d := range s.dofs {
		inc := sol[i]
		switch d.Order {
		case dynamo.Differential:
			s.ws.xp[i] += inc
			s.ws.x[i] += s.coef.B0Differential * inc
		case dynamo.Algebraic:
			s.ws.x[i] += inc
			s.ws.xp[i] += s.coef.B0Algebraic * inc
		default:
			return errors.Wrapf(dynamo.ErrUnknownDofOrder, "update dof %d", i)
		}
	}
	s.dm.Update()
	return nil
}

func (s *StepN) EvalProd(tau float64, f0, w, z dynamo.State) error {
	if s.dm == nil {
		return errNoDataManager()
	}
	return s.mf.evalProd(&s.ws, s, s.dm.Update, tau, f0, w, z)
}

func (s *StepN) TestScale(sc dynamo.Scaler) (float64, float64) {
	return s.ts.scale(s.dofs, s.ws.xp, sc), s.coef.B0Differential
}

// FDJacobian builds the Jacobian by central differences of the residual,
// with the same sign convention as AssJac. The working state is restored
// after every column.
func (s *StepN) FDJacobian() (*mat.Dense, error) {
	if !s.ws.bound() || s.dm == nil {
		return nil, errors.Wrap(dynamo.ErrUnbound, "fd jacobian")
	}
	n := len(s.dofs)
	fd := mat.NewDense(n, n, nil)
	inc := make(dynamo.State, n)
	rp := make(dynamo.State, n)
	rm := make(dynamo.State, n)
	x0, xp0 := s.ws.x.Clone(), s.ws.xp.Clone()

	perturbed := func(h float64, i int, out dynamo.State) error {
		inc.Reset()
		inc[i] = h
		err := s.Update(inc)
		if err == nil {
			out.Reset()
			err = s.dm.AssRes(out, s.coef.B0Differential)
		}
		s.ws.x.CopyFrom(x0)
		s.ws.xp.CopyFrom(xp0)
		return err
	}

	for i := 0; i < n; i++ {
		if err := perturbed(fdStep, i, rp); err != nil {
			s.dm.Update()
			return nil, err
		}
		if err := perturbed(-fdStep, i, rm); err != nil {
			s.dm.Update()
			return nil, err
		}
		for j := 0; j < n; j++ {
			v := -(rp[j] - rm[j]) / (2 * fdStep)
			if math.Abs(v) <= 1e-100 {
				v = 0
			}
			fd.Set(j, i, v)
		}
	}
	s.dm.Update()
	return fd, nil
}

type predictFunc func(i int, order dynamo.DofOrder, h *dynamo.History) error

// advance runs one predictor-corrector step.
func (s *StepN) advance(d Driver, req StepRequest, setCoef func(dt, alpha float64, change dynamo.StepChange) Coef, predict predictFunc) (dynamo.Stats, error) {
	if s.dm == nil {
		return dynamo.Stats{}, errNoDataManager()
	}
	if err := s.checkHistory(req.History); err != nil {
		return dynamo.Stats{}, err
	}
	if err := s.checkBuffers(req.X, req.XPrime); err != nil {
		return dynamo.Stats{}, err
	}
	defer s.ws.bind(req.X, req.XPrime, nil, nil)()

	s.coef = setCoef(req.TStep, req.Alpha, req.Change)
	for i, dof := range s.dofs {
		if err := predict(i, dof.Order, req.History); err != nil {
			return dynamo.Stats{}, err
		}
	}

	s.dm.LinkToSolution(req.X, req.XPrime)
	if err := s.dm.AfterPredict(); err != nil {
		return dynamo.Stats{}, errors.Wrap(err, "after predict")
	}
	if s.outputPred && s.onPredict != nil {
		s.onPredict(s.report(req.History))
	}

	stats, err := d.NonlinearSolver().Solve(s, s.maxIters, s.tol, s.solTol)
	if err != nil {
		return stats, errors.Wrapf(err, "step at t=%g", s.dm.Time())
	}
	s.dm.AfterConvergence()
	level.Debug(s.logger).Log("msg", "step converged", "t", s.dm.Time(), "iters", stats.Iters, "err", stats.Err)
	return stats, nil
}

func (s *StepN) report(h *dynamo.History) PredictionReport {
	r := PredictionReport{
		Time:   s.dm.Time(),
		Dofs:   append([]dynamo.Dof(nil), s.dofs...),
		X:      s.ws.x.Clone(),
		XPrime: s.ws.xp.Clone(),
	}
	for i := 0; i < s.steps; i++ {
		r.XPrev = append(r.XPrev, h.X(i).Clone())
		r.XPrimePrev = append(r.XPrimePrev, h.XPrime(i).Clone())
	}
	return r
}
