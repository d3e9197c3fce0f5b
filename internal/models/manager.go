package models

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
)

// HookCounts records how often each lifecycle hook ran.
type HookCounts struct {
	Update            int
	DerivativesUpdate int
	AfterPredict      int
	AfterConvergence  int
	Residual          int
	Jacobian          int
}

// Manager implements integrators.DataManager for any Equations.
type Manager struct {
	eq    Equations
	dofs  []dynamo.Dof
	t     float64
	x     dynamo.State
	xp    dynamo.State
	dRdx  *mat.Dense
	dRdxp *mat.Dense
	fdJac bool
	hooks HookCounts

	onConverged func(t float64, x, xp dynamo.State)
}

var _ integrators.DataManager = (*Manager)(nil)

func NewManager(eq Equations) *Manager {
	dofs := eq.Dofs()
	n := len(dofs)
	return &Manager{
		eq:    eq,
		dofs:  dofs,
		dRdx:  mat.NewDense(n, n, nil),
		dRdxp: mat.NewDense(n, n, nil),
	}
}

func (m *Manager) Equations() Equations { return m.eq }
func (m *Manager) Dofs() []dynamo.Dof   { return m.dofs }
func (m *Manager) Time() float64        { return m.t }
func (m *Manager) SetTime(t float64)    { m.t = t }
func (m *Manager) Hooks() HookCounts    { return m.hooks }
func (m *Manager) FDJac() bool          { return m.fdJac }

// SetFDJac turns on the finite-difference check of every assembled
// Jacobian.
func (m *Manager) SetFDJac(on bool) { m.fdJac = on }

// OnConverged registers fn to run after every converged step.
func (m *Manager) OnConverged(fn func(t float64, x, xp dynamo.State)) { m.onConverged = fn }

func (m *Manager) LinkToSolution(x, xp dynamo.State) {
	m.x, m.xp = x, xp
}

// Linked returns the buffers the manager currently reads.
func (m *Manager) Linked() (x, xp dynamo.State) { return m.x, m.xp }

func (m *Manager) AssRes(res dynamo.State, _ float64) error {
	if m.x == nil {
		return errors.Wrap(dynamo.ErrUnbound, "assemble residual: no linked solution")
	}
	m.hooks.Residual++
	m.eq.Residual(m.t, m.x, m.xp, res)
	return nil
}

// AssJac assembles -dR/d(increment): for a differential DOF the increment
// moves x' by 1 and x by coef, for an algebraic DOF the other way round.
func (m *Manager) AssJac(jac *mat.Dense, coef float64) error {
	if m.x == nil {
		return errors.Wrap(dynamo.ErrUnbound, "assemble jacobian: no linked solution")
	}
	m.hooks.Jacobian++
	m.partials()

	n := len(m.dofs)
	for j, d := range m.dofs {
		var primary, secondary *mat.Dense
		switch d.Order {
		case dynamo.Differential:
			primary, secondary = m.dRdxp, m.dRdx
		case dynamo.Algebraic:
			primary, secondary = m.dRdx, m.dRdxp
		default:
			return errors.Wrapf(dynamo.ErrUnknownDofOrder, "assemble jacobian: dof %d", j)
		}
		for i := 0; i < n; i++ {
			jac.Set(i, j, -(primary.At(i, j) + coef*secondary.At(i, j)))
		}
	}
	return nil
}

func (m *Manager) partials() {
	m.dRdx.Zero()
	m.dRdxp.Zero()
	if d, ok := m.eq.(Differentiable); ok {
		d.Partials(m.t, m.x, m.xp, m.dRdx, m.dRdxp)
		return
	}
	numericPartials(m.eq, m.t, m.x, m.xp, m.dRdx, m.dRdxp)
}

func (m *Manager) Update()            { m.hooks.Update++ }
func (m *Manager) DerivativesUpdate() { m.hooks.DerivativesUpdate++ }

func (m *Manager) AfterPredict() error {
	m.hooks.AfterPredict++
	if !m.x.IsValid() || !m.xp.IsValid() {
		return errors.Wrapf(dynamo.ErrInvalidState, "prediction at t=%g", m.t)
	}
	return nil
}

func (m *Manager) AfterConvergence() {
	m.hooks.AfterConvergence++
	if m.onConverged != nil {
		m.onConverged(m.t, m.x, m.xp)
	}
}

// Energy returns the system energy at the linked state, or NaN when the
// equations do not define one.
func (m *Manager) Energy() float64 {
	if e, ok := m.eq.(Energetic); ok && m.x != nil {
		return e.Energy(m.x, m.xp)
	}
	return math.NaN()
}
