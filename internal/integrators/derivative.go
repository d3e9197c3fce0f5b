package integrators

import (
	"math"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// DerivativeParams configures the coefficient search of a DerivativeSolver.
type DerivativeParams struct {
	Params
	// Coef is the initial pseudo-time coefficient.
	Coef float64
	// MaxIterCoef bounds the search: at most 2*MaxIterCoef+1 attempts.
	MaxIterCoef int
	// FactorCoef multiplies or divides Coef between attempts.
	FactorCoef float64
}

// attempt is the configuration of one nonlinear solve of the search.
type attempt struct {
	index      int
	coef       float64
	tol        float64
	solTol     float64
	iterFactor int
}

// coefSearch walks the coefficient schedule: up by factor for MaxIterCoef
// attempts, then restart below the initial value and walk down, and finally
// one forced attempt with the best coefficient seen and tolerances relaxed
// to just above the errors that coefficient reached.
type coefSearch struct {
	initial   float64
	factor    float64
	maxIter   int
	resErrMin float64
	solErrMin float64
	coefBest  float64
}

func newCoefSearch(initial, factor float64, maxIter int) *coefSearch {
	return &coefSearch{
		initial:   initial,
		factor:    factor,
		maxIter:   maxIter,
		resErrMin: math.MaxFloat64,
		solErrMin: math.MaxFloat64,
		coefBest:  initial,
	}
}

func (c *coefSearch) total() int {
	if c.maxIter <= 0 {
		return 1
	}
	return 2*c.maxIter + 1
}

func (c *coefSearch) record(a attempt, st dynamo.Stats) {
	if st.Err < c.resErrMin {
		c.resErrMin = st.Err
		c.coefBest = a.coef
		c.solErrMin = st.SolErr
	}
}

func (c *coefSearch) next(a attempt) attempt {
	n := a
	n.index = a.index + 1
	switch i := a.index; {
	case i == 2*c.maxIter-1:
		n.coef = c.coefBest
		n.tol = 1.01 * c.resErrMin
		n.solTol = 1.01 * c.solErrMin
		n.iterFactor = 2
	case i < c.maxIter:
		n.coef *= c.factor
	case i == c.maxIter:
		n.coef = c.initial / c.factor
	default:
		n.coef /= c.factor
	}
	return n
}

// DerivativeSolver computes derivatives consistent with the initial state
// by a pseudo-time step. The algebraic relations are enforced while the
// differential states move by coef times the derivative increment. When a
// solve fails the coefficient is varied until one converges.
type DerivativeSolver struct {
	base
	dm     DataManager
	ws     workspace
	mf     matrixFree
	search DerivativeParams
	cur    attempt
}

var _ Integrator = (*DerivativeSolver)(nil)

func NewDerivativeSolver(p DerivativeParams, opts ...Option) *DerivativeSolver {
	if p.FactorCoef <= 0 {
		p.FactorCoef = 10
	}
	s := &DerivativeSolver{
		base:   newBase(p.Params, 1, 1, opts),
		search: p,
	}
	s.cur = s.initialAttempt()
	return s
}

func (s *DerivativeSolver) initialAttempt() attempt {
	return attempt{coef: s.search.Coef, tol: s.tol, solTol: s.solTol, iterFactor: 1}
}

func (s *DerivativeSolver) SetDataManager(dm DataManager) {
	s.dm = dm
	s.dofs = dm.Dofs()
}

// Attempt reports the index (from zero), coefficient and tolerances of the
// current or most recent attempt.
func (s *DerivativeSolver) Attempt() (index int, coef, tol, solTol float64) {
	return s.cur.index, s.cur.coef, s.cur.tol, s.cur.solTol
}

// MaxAttempts is the number of solves the search may run.
func (s *DerivativeSolver) MaxAttempts() int {
	return newCoefSearch(s.search.Coef, s.search.FactorCoef, s.search.MaxIterCoef).total()
}

func (s *DerivativeSolver) Advance(d Driver, req StepRequest) (dynamo.Stats, error) {
	if s.dm == nil {
		return dynamo.Stats{}, errNoDataManager()
	}
	if err := s.checkBuffers(req.X, req.XPrime); err != nil {
		return dynamo.Stats{}, err
	}

	x, xp := req.X.Clone(), req.XPrime.Clone()
	defer s.ws.bind(x, xp, nil, nil)()
	defer s.dm.LinkToSolution(req.X, req.XPrime)
	s.dm.LinkToSolution(x, xp)

	search := newCoefSearch(s.search.Coef, s.search.FactorCoef, s.search.MaxIterCoef)
	total := search.total()
	s.cur = s.initialAttempt()

	for {
		stats, err := d.NonlinearSolver().Solve(s, s.cur.iterFactor*s.maxIters, s.cur.tol, s.cur.solTol)
		if err == nil {
			s.dm.AfterConvergence()
			req.X.CopyFrom(x)
			req.XPrime.CopyFrom(xp)
			return stats, nil
		}
		if errors.Is(err, dynamo.ErrFactor) {
			d.SolutionManager().MatrReset()
		}
		if s.cur.index >= total-1 || dynamo.KindOf(err) != dynamo.KindRetryable {
			return stats, errors.Wrapf(err, "derivatives at t=%g after %d attempts", s.dm.Time(), s.cur.index+1)
		}

		search.record(s.cur, stats)
		x.CopyFrom(req.X)
		xp.CopyFrom(req.XPrime)
		s.dm.LinkToSolution(x, xp)
		s.dm.DerivativesUpdate()

		s.cur = search.next(s.cur)
		level.Info(s.logger).Log(
			"msg", "derivatives failed, changing coefficient",
			"attempt", s.cur.index+1,
			"of", total,
			"t", s.dm.Time(),
			"coef", relCoef(s.cur.coef, req.TStep),
			"tol", s.cur.tol,
			"err", err,
		)
	}
}

func relCoef(coef, dt float64) float64 {
	if dt == 0 {
		return coef
	}
	return coef / dt
}

func (s *DerivativeSolver) Residual(res dynamo.State) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "residual")
	}
	return s.dm.AssRes(res, s.cur.coef)
}

func (s *DerivativeSolver) Jacobian(jac *mat.Dense) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "jacobian")
	}
	return s.dm.AssJac(jac, s.cur.coef)
}

// Update moves differential DOFs along the derivative increment and
// algebraic DOFs along the state increment, each scaled by the current
// coefficient on the other side.
func (s *DerivativeSolver) Update(sol dynamo.State) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "update")
	}
	if len(sol) != len(s.dofs) {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "increment of size %d", len(sol))
	}
	c := s.cur.coef
	for i, d := range s.dofs {
		inc := sol[i]
		switch d.Order {
		case dynamo.Differential:
			s.ws.xp[i] += inc
			s.ws.x[i] += c * inc
		case dynamo.Algebraic:
			s.ws.x[i] += inc
			s.ws.xp[i] += c * inc
		default:
			return errors.Wrapf(dynamo.ErrUnknownDofOrder, "update dof %d", i)
		}
	}
	s.dm.DerivativesUpdate()
	return nil
}

func (s *DerivativeSolver) EvalProd(tau float64, f0, w, z dynamo.State) error {
	if s.dm == nil {
		return errNoDataManager()
	}
	return s.mf.evalProd(&s.ws, s, s.dm.Update, tau, f0, w, z)
}

// TestScale returns no residual scaling; the algebraic scale is the
// current coefficient.
func (s *DerivativeSolver) TestScale(dynamo.Scaler) (float64, float64) {
	return 1, s.cur.coef
}
