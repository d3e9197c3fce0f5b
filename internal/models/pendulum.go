package models

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// Pendulum is a point mass on a rigid massless rod in cartesian
// coordinates, with the rod length enforced by a multiplier.
//
//	R_x = u - x'          R_u = -m u' - λ x
//	R_y = v - y'          R_v = -m v' - m g - λ y
//	R_λ = (L² - x² - y²) / 2
type Pendulum struct {
	Mass    float64
	Length  float64
	Gravity float64
	// Theta0 is the release angle from the downward vertical.
	Theta0 float64
}

var (
	_ Equations      = (*Pendulum)(nil)
	_ Differentiable = (*Pendulum)(nil)
	_ Energetic      = (*Pendulum)(nil)
)

func NewPendulum() *Pendulum {
	return &Pendulum{Mass: DefaultMass, Length: DefaultLength, Gravity: DefaultGravity, Theta0: math.Pi / 2}
}

func (p *Pendulum) Name() string { return "pendulum" }

func (p *Pendulum) Dofs() []dynamo.Dof {
	return []dynamo.Dof{
		{Order: dynamo.Differential, Description: "x"},
		{Order: dynamo.Differential, Description: "y"},
		{Order: dynamo.Differential, Description: "u"},
		{Order: dynamo.Differential, Description: "v"},
		{Order: dynamo.Algebraic, Description: "lambda"},
	}
}

func (p *Pendulum) Residual(_ float64, x, xp, res dynamo.State) {
	px, py, u, v, lambda := x[0], x[1], x[2], x[3], x[4]
	res[0] = u - xp[0]
	res[1] = v - xp[1]
	res[2] = -p.Mass*xp[2] - lambda*px
	res[3] = -p.Mass*xp[3] - p.Mass*p.Gravity - lambda*py
	res[4] = 0.5 * (p.Length*p.Length - px*px - py*py)
}

func (p *Pendulum) Partials(_ float64, x, _ dynamo.State, dRdx, dRdxp *mat.Dense) {
	px, py, lambda := x[0], x[1], x[4]
	dRdx.Set(0, 2, 1)
	dRdxp.Set(0, 0, -1)
	dRdx.Set(1, 3, 1)
	dRdxp.Set(1, 1, -1)
	dRdx.Set(2, 0, -lambda)
	dRdx.Set(2, 4, -px)
	dRdxp.Set(2, 2, -p.Mass)
	dRdx.Set(3, 1, -lambda)
	dRdx.Set(3, 4, -py)
	dRdxp.Set(3, 3, -p.Mass)
	dRdx.Set(4, 0, -px)
	dRdx.Set(4, 1, -py)
}

// Initial releases the pendulum from rest at Theta0. The multiplier and
// accelerations satisfy the twice differentiated length constraint.
func (p *Pendulum) Initial() (dynamo.State, dynamo.State) {
	px := p.Length * math.Sin(p.Theta0)
	py := -p.Length * math.Cos(p.Theta0)
	lambda := -p.Mass * p.Gravity * py / (p.Length * p.Length)
	return dynamo.State{px, py, 0, 0, lambda},
		dynamo.State{0, 0, -lambda * px / p.Mass, -p.Gravity - lambda*py/p.Mass, 0}
}

func (p *Pendulum) Energy(x, _ dynamo.State) float64 {
	u, v := x[2], x[3]
	return 0.5*p.Mass*(u*u+v*v) + p.Mass*p.Gravity*x[1]
}
