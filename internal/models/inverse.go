package models

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
)

// InverseEquations describes a system whose motion is prescribed by
// holonomic constraints Φ(t, x) = 0 and whose actuator forces are sought.
type InverseEquations interface {
	Name() string
	Dofs() []dynamo.Dof
	ProblemType() integrators.ProblemType
	// Constraint overwrites res with -Φ(t, x).
	Constraint(t float64, x, res dynamo.State)
	// ConstraintJacobian overwrites jac with Φ_x.
	ConstraintJacobian(t float64, x dynamo.State, jac *mat.Dense)
	// VelocityRHS overwrites res with -Φ_t.
	VelocityRHS(t float64, x, res dynamo.State)
	// AccelerationRHS overwrites res with -Φ_tt - (Φ_x x')_x x'.
	AccelerationRHS(t float64, x, xp, res dynamo.State)
	// Dynamics overwrites res with the generalized forces the actuators
	// must supply for the motion (x, x', x'').
	Dynamics(t float64, x, xp, xpp, res dynamo.State)
	Initial() dynamo.State
}

// InverseManager implements integrators.InverseDataManager.
type InverseManager struct {
	eq     InverseEquations
	dofs   []dynamo.Dof
	t      float64
	x      dynamo.State
	xp     dynamo.State
	xpp    dynamo.State
	lambda dynamo.State

	phases      []integrators.Phase
	converged   int
	onConverged func(t float64, x, xp, xpp, lambda dynamo.State)
}

var _ integrators.InverseDataManager = (*InverseManager)(nil)

func NewInverseManager(eq InverseEquations) *InverseManager {
	return &InverseManager{eq: eq, dofs: eq.Dofs()}
}

func (m *InverseManager) Equations() InverseEquations { return m.eq }
func (m *InverseManager) Dofs() []dynamo.Dof          { return m.dofs }
func (m *InverseManager) Time() float64               { return m.t }
func (m *InverseManager) SetTime(t float64)           { m.t = t }

func (m *InverseManager) ProblemType() integrators.ProblemType { return m.eq.ProblemType() }

// Phases lists the distinct phases updated during the current or latest
// step, in order.
func (m *InverseManager) Phases() []integrators.Phase { return m.phases }

// Converged counts completed steps.
func (m *InverseManager) Converged() int { return m.converged }

func (m *InverseManager) OnConverged(fn func(t float64, x, xp, xpp, lambda dynamo.State)) {
	m.onConverged = fn
}

func (m *InverseManager) LinkToSolutionID(x, xp, xpp, lambda dynamo.State) {
	m.x, m.xp, m.xpp, m.lambda = x, xp, xpp, lambda
	m.phases = m.phases[:0]
}

func (m *InverseManager) AssRes(res dynamo.State) error {
	if m.x == nil {
		return errors.Wrap(dynamo.ErrUnbound, "assemble dynamics: no linked solution")
	}
	m.eq.Dynamics(m.t, m.x, m.xp, m.xpp, res)
	return nil
}

func (m *InverseManager) AssConstrRes(res dynamo.State, phase integrators.Phase) error {
	if m.x == nil {
		return errors.Wrap(dynamo.ErrUnbound, "assemble constraints: no linked solution")
	}
	switch phase {
	case integrators.PhasePosition:
		m.eq.Constraint(m.t, m.x, res)
	case integrators.PhaseVelocity:
		m.eq.VelocityRHS(m.t, m.x, res)
	case integrators.PhaseAcceleration:
		m.eq.AccelerationRHS(m.t, m.x, m.xp, res)
	default:
		return errors.Wrapf(dynamo.ErrNotImplemented, "constraint residual in %v phase", phase)
	}
	return nil
}

func (m *InverseManager) AssConstrJac(jac *mat.Dense, _ integrators.Phase) error {
	if m.x == nil {
		return errors.Wrap(dynamo.ErrUnbound, "assemble constraint jacobian: no linked solution")
	}
	m.eq.ConstraintJacobian(m.t, m.x, jac)
	return nil
}

func (m *InverseManager) UpdatePhase(phase integrators.Phase) {
	if n := len(m.phases); n == 0 || m.phases[n-1] != phase {
		m.phases = append(m.phases, phase)
	}
}

func (m *InverseManager) IDAfterConvergence() {
	m.converged++
	if m.onConverged != nil {
		m.onConverged(m.t, m.x, m.xp, m.xpp, m.lambda)
	}
}
