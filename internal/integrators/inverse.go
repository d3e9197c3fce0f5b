package integrators

import (
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// Phase is the stage of an inverse dynamics step.
type Phase int

const (
	PhaseUndefined Phase = iota
	PhasePosition
	PhaseVelocity
	PhaseAcceleration
	PhaseInverseDynamics
)

func (p Phase) String() string {
	switch p {
	case PhasePosition:
		return "position"
	case PhaseVelocity:
		return "velocity"
	case PhaseAcceleration:
		return "acceleration"
	case PhaseInverseDynamics:
		return "inverse-dynamics"
	default:
		return "undefined"
	}
}

// next is the phase that follows p in a step; the force phase wraps
// around to the next step's position phase.
func (p Phase) next() Phase {
	if p == PhaseInverseDynamics || p == PhaseUndefined {
		return PhasePosition
	}
	return p + 1
}

// ProblemType classifies an inverse dynamics problem by actuation.
type ProblemType int

const (
	FullyActuatedCollocated ProblemType = iota
	FullyActuatedNonCollocated
	UnderdeterminedUnderactuatedCollocated
	UnderdeterminedFullyActuated
)

func (t ProblemType) String() string {
	switch t {
	case FullyActuatedCollocated:
		return "fully-actuated-collocated"
	case FullyActuatedNonCollocated:
		return "fully-actuated-non-collocated"
	case UnderdeterminedUnderactuatedCollocated:
		return "underdetermined-underactuated-collocated"
	case UnderdeterminedFullyActuated:
		return "underdetermined-fully-actuated"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseProblemType is the inverse of ProblemType.String.
func ParseProblemType(s string) (ProblemType, error) {
	for t := FullyActuatedCollocated; t <= UnderdeterminedFullyActuated; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown inverse dynamics problem %q", s)
}

// jacobianRefresh tells whether a phase must reassemble the Jacobian or
// can reuse the factorization left by the previous phase.
var jacobianRefresh = map[ProblemType]map[Phase]bool{
	FullyActuatedCollocated: {
		PhasePosition: true, PhaseVelocity: false, PhaseAcceleration: false, PhaseInverseDynamics: true,
	},
	FullyActuatedNonCollocated: {
		PhasePosition: true, PhaseVelocity: false, PhaseAcceleration: true, PhaseInverseDynamics: true,
	},
	UnderdeterminedFullyActuated: {
		PhasePosition: true, PhaseVelocity: true, PhaseAcceleration: true, PhaseInverseDynamics: true,
	},
}

func needsJacobian(t ProblemType, p Phase) (bool, error) {
	phases, ok := jacobianRefresh[t]
	if !ok {
		return false, errors.Wrapf(dynamo.ErrNotImplemented, "inverse dynamics problem %v", t)
	}
	return phases[p], nil
}

// InverseDynamicsStepSolver advances an inverse dynamics problem: a
// nonlinear position solve followed by linear velocity, acceleration and
// force solves.
type InverseDynamicsStepSolver struct {
	base
	dm       InverseDataManager
	ws       workspace
	mf       matrixFree
	ts       testScaler
	phase    Phase
	jacobian bool
}

var _ Integrator = (*InverseDynamicsStepSolver)(nil)

func NewInverseDynamics(p Params, opts ...Option) *InverseDynamicsStepSolver {
	return &InverseDynamicsStepSolver{
		base:     newBase(p, 1, 4, opts),
		ts:       testScaler{enabled: p.ModResTest},
		jacobian: true,
	}
}

func (s *InverseDynamicsStepSolver) SetDataManager(dm InverseDataManager) {
	s.dm = dm
	s.dofs = dm.Dofs()
}

// Phase returns the phase in progress, or the last one run.
func (s *InverseDynamicsStepSolver) Phase() Phase { return s.phase }

// NeedsJacobian reports whether the next phase reassembles the Jacobian.
func (s *InverseDynamicsStepSolver) NeedsJacobian() bool { return s.jacobian }

func (s *InverseDynamicsStepSolver) Advance(d Driver, req StepRequest) (dynamo.Stats, error) {
	if s.dm == nil {
		return dynamo.Stats{}, errNoDataManager()
	}
	pt := s.dm.ProblemType()
	if _, err := needsJacobian(pt, PhasePosition); err != nil {
		return dynamo.Stats{}, err
	}
	if err := s.checkBuffers(req.X, req.XPrime, req.XPrimePrime, req.Lambda); err != nil {
		return dynamo.Stats{}, err
	}
	defer s.ws.bind(req.X, req.XPrime, req.XPrimePrime, req.Lambda)()
	s.dm.LinkToSolutionID(req.X, req.XPrime, req.XPrimePrime, req.Lambda)

	s.phase = PhasePosition
	stats, err := d.NonlinearSolver().Solve(s, s.maxIters, s.tol, s.solTol)
	if err != nil {
		return stats, errors.Wrapf(err, "%v phase at t=%g", s.phase, s.dm.Time())
	}

	sm := d.SolutionManager()
	for _, ph := range []Phase{PhaseVelocity, PhaseAcceleration, PhaseInverseDynamics} {
		if err := s.solveLinear(sm, ph, pt, &stats); err != nil {
			return stats, errors.Wrapf(err, "%v phase at t=%g", ph, s.dm.Time())
		}
	}

	s.dm.IDAfterConvergence()
	level.Debug(s.logger).Log("msg", "inverse step converged", "t", s.dm.Time(), "iters", stats.Iters)
	return stats, nil
}

// solveLinear runs one single-solve phase. stats.Iters counts every
// Jacobian assembly.
func (s *InverseDynamicsStepSolver) solveLinear(sm dynamo.SolutionManager, ph Phase, pt ProblemType, stats *dynamo.Stats) error {
	s.phase = ph
	res, sol := sm.Res(), sm.Sol()
	res.Reset()
	sol.Reset()

	if err := s.Residual(res); err != nil {
		return err
	}
	if s.jacobian {
		sm.MatrReset()
		if err := s.Jacobian(sm.Matrix()); err != nil {
			return err
		}
		stats.Iters++
	}

	var err error
	if ph == PhaseInverseDynamics && pt == FullyActuatedCollocated {
		err = sm.SolveT()
	} else {
		err = sm.Solve()
	}
	if err != nil {
		return err
	}
	return s.Update(sol)
}

func (s *InverseDynamicsStepSolver) Residual(res dynamo.State) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "residual")
	}
	switch s.phase {
	case PhaseInverseDynamics:
		return s.dm.AssRes(res)
	case PhaseUndefined:
		return errors.Wrap(dynamo.ErrUnbound, "residual outside of a phase")
	default:
		return s.dm.AssConstrRes(res, s.phase)
	}
}

func (s *InverseDynamicsStepSolver) Jacobian(jac *mat.Dense) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "jacobian")
	}
	return s.dm.AssConstrJac(jac, s.phase)
}

// Update applies the phase's solution: an increment of the positions, or
// the new velocities, accelerations or reactions.
func (s *InverseDynamicsStepSolver) Update(sol dynamo.State) error {
	if !s.ws.bound() || s.dm == nil {
		return errors.Wrap(dynamo.ErrUnbound, "update")
	}
	if len(sol) != len(s.dofs) {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "solution of size %d", len(sol))
	}
	switch s.phase {
	case PhasePosition:
		s.ws.x.AddScaled(1, sol)
	case PhaseVelocity:
		s.ws.xp.CopyFrom(sol)
	case PhaseAcceleration:
		s.ws.xpp.CopyFrom(sol)
	case PhaseInverseDynamics:
		s.ws.lambda.CopyFrom(sol)
	default:
		return errors.Wrap(dynamo.ErrUnbound, "update outside of a phase")
	}
	s.dm.UpdatePhase(s.phase)

	need, err := needsJacobian(s.dm.ProblemType(), s.phase.next())
	if err != nil {
		return err
	}
	s.jacobian = need
	return nil
}

func (s *InverseDynamicsStepSolver) EvalProd(tau float64, f0, w, z dynamo.State) error {
	if s.dm == nil {
		return errNoDataManager()
	}
	return s.mf.evalProd(&s.ws, s, func() { s.dm.UpdatePhase(s.phase) }, tau, f0, w, z)
}

func (s *InverseDynamicsStepSolver) TestScale(sc dynamo.Scaler) (float64, float64) {
	return s.ts.scale(s.dofs, s.ws.xp, sc), 1
}
