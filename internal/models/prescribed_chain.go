package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
)

// PrescribedChain is a chain of masses and springs, grounded at the left,
// whose relative coordinates follow p_i(t) = A_i sin(ωt + φ_i):
//
//	Φ_0 = x_0 - p_0(t)
//	Φ_i = x_i - x_{i-1} - p_i(t)
//
// Each relative coordinate carries an actuator, so the problem is fully
// actuated and collocated: the forces λ satisfy Φ_xᵀ λ = M x'' + C x' + K x.
type PrescribedChain struct {
	Masses    []float64
	Stiffness []float64
	Damping   []float64
	Amplitude []float64
	Phase     []float64
	Omega     float64
}

var _ InverseEquations = (*PrescribedChain)(nil)

func NewPrescribedChain(n int) *PrescribedChain {
	c := &PrescribedChain{
		Masses:    make([]float64, n),
		Stiffness: make([]float64, n),
		Damping:   make([]float64, n),
		Amplitude: make([]float64, n),
		Phase:     make([]float64, n),
		Omega:     2,
	}
	for i := 0; i < n; i++ {
		c.Masses[i] = DefaultMass
		c.Stiffness[i] = DefaultStiffness
		c.Damping[i] = 0.2
		c.Amplitude[i] = 0.1
		c.Phase[i] = float64(i) * math.Pi / 4
	}
	return c
}

func (c *PrescribedChain) Name() string { return "prescribed_chain" }

func (c *PrescribedChain) Dofs() []dynamo.Dof {
	dofs := make([]dynamo.Dof, len(c.Masses))
	for i := range dofs {
		dofs[i] = dynamo.Dof{Order: dynamo.Differential, Description: fmt.Sprintf("x%d", i)}
	}
	return dofs
}

func (c *PrescribedChain) ProblemType() integrators.ProblemType {
	return integrators.FullyActuatedCollocated
}

// Prescribed returns p_i and its first two time derivatives.
func (c *PrescribedChain) Prescribed(i int, t float64) (p, pd, pdd float64) {
	arg := c.Omega*t + c.Phase[i]
	a, w := c.Amplitude[i], c.Omega
	return a * math.Sin(arg), a * w * math.Cos(arg), -a * w * w * math.Sin(arg)
}

func (c *PrescribedChain) Constraint(t float64, x, res dynamo.State) {
	for i := range res {
		p, _, _ := c.Prescribed(i, t)
		rel := x[i]
		if i > 0 {
			rel -= x[i-1]
		}
		res[i] = p - rel
	}
}

func (c *PrescribedChain) ConstraintJacobian(_ float64, _ dynamo.State, jac *mat.Dense) {
	n := len(c.Masses)
	for i := 0; i < n; i++ {
		jac.Set(i, i, 1)
		if i > 0 {
			jac.Set(i, i-1, -1)
		}
	}
}

func (c *PrescribedChain) VelocityRHS(t float64, _, res dynamo.State) {
	for i := range res {
		_, pd, _ := c.Prescribed(i, t)
		res[i] = pd
	}
}

func (c *PrescribedChain) AccelerationRHS(t float64, _, _, res dynamo.State) {
	for i := range res {
		_, _, pdd := c.Prescribed(i, t)
		res[i] = pdd
	}
}

func (c *PrescribedChain) Dynamics(_ float64, x, xp, xpp, res dynamo.State) {
	n := len(c.Masses)
	for i := 0; i < n; i++ {
		f := c.Masses[i]*xpp[i] + c.Damping[i]*xp[i]
		left := x[i]
		if i > 0 {
			left -= x[i-1]
		}
		f += c.Stiffness[i] * left
		if i < n-1 {
			f -= c.Stiffness[i+1] * (x[i+1] - x[i])
		}
		res[i] = f
	}
}

// Initial is the prescribed configuration at t = 0.
func (c *PrescribedChain) Initial() dynamo.State {
	x := make(dynamo.State, len(c.Masses))
	acc := 0.0
	for i := range x {
		p, _, _ := c.Prescribed(i, 0)
		acc += p
		x[i] = acc
	}
	return x
}
