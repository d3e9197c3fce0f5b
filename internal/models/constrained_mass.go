package models

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// ConstrainedMass is a mass on a spring whose position is prescribed as
// A·sin(ωt). The constraint reaction is an algebraic multiplier.
//
//	R_q = v - q'
//	R_v = -k q - m v' + λ
//	R_λ = A sin(ωt) - q
type ConstrainedMass struct {
	Mass      float64
	Stiffness float64
	Amplitude float64
	Omega     float64
}

var (
	_ Equations      = (*ConstrainedMass)(nil)
	_ Differentiable = (*ConstrainedMass)(nil)
)

func NewConstrainedMass() *ConstrainedMass {
	return &ConstrainedMass{Mass: DefaultMass, Stiffness: DefaultStiffness, Amplitude: 0.1, Omega: 2}
}

func (c *ConstrainedMass) Name() string { return "constrained_mass" }

func (c *ConstrainedMass) Dofs() []dynamo.Dof {
	return []dynamo.Dof{
		{Order: dynamo.Differential, Description: "q"},
		{Order: dynamo.Differential, Description: "v"},
		{Order: dynamo.Algebraic, Description: "lambda"},
	}
}

func (c *ConstrainedMass) Residual(t float64, x, xp, res dynamo.State) {
	res[0] = x[1] - xp[0]
	res[1] = -c.Stiffness*x[0] - c.Mass*xp[1] + x[2]
	res[2] = c.Amplitude*math.Sin(c.Omega*t) - x[0]
}

func (c *ConstrainedMass) Partials(_ float64, _, _ dynamo.State, dRdx, dRdxp *mat.Dense) {
	dRdx.Set(0, 1, 1)
	dRdxp.Set(0, 0, -1)
	dRdx.Set(1, 0, -c.Stiffness)
	dRdx.Set(1, 2, 1)
	dRdxp.Set(1, 1, -c.Mass)
	dRdx.Set(2, 0, -1)
}

// Reaction is the exact multiplier at time t.
func (c *ConstrainedMass) Reaction(t float64) float64 {
	q := c.Amplitude * math.Sin(c.Omega*t)
	acc := -c.Omega * c.Omega * q
	return c.Mass*acc + c.Stiffness*q
}

func (c *ConstrainedMass) Initial() (dynamo.State, dynamo.State) {
	v := c.Amplitude * c.Omega
	return dynamo.State{0, v, c.Reaction(0)}, dynamo.State{v, 0, 0}
}
