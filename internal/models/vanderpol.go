package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// VanDerPol is the oscillator x'' = mu (1 - x^2) x' - x. Large Mu makes it
// stiff.
type VanDerPol struct {
	Mu float64
	X0 float64
}

var (
	_ Equations      = (*VanDerPol)(nil)
	_ Differentiable = (*VanDerPol)(nil)
)

func NewVanDerPol() *VanDerPol {
	return &VanDerPol{Mu: 1, X0: 2}
}

func (v *VanDerPol) Name() string { return "van_der_pol" }

func (v *VanDerPol) Dofs() []dynamo.Dof {
	return []dynamo.Dof{
		{Order: dynamo.Differential, Description: "x"},
		{Order: dynamo.Differential, Description: "v"},
	}
}

func (v *VanDerPol) Residual(_ float64, x, xp, res dynamo.State) {
	res[0] = x[1] - xp[0]
	res[1] = v.Mu*(1-x[0]*x[0])*x[1] - x[0] - xp[1]
}

func (v *VanDerPol) Partials(_ float64, x, _ dynamo.State, dRdx, dRdxp *mat.Dense) {
	dRdx.Set(0, 1, 1)
	dRdx.Set(1, 0, -2*v.Mu*x[0]*x[1]-1)
	dRdx.Set(1, 1, v.Mu*(1-x[0]*x[0]))
	dRdxp.Set(0, 0, -1)
	dRdxp.Set(1, 1, -1)
}

func (v *VanDerPol) Initial() (dynamo.State, dynamo.State) {
	x := dynamo.State{v.X0, 0}
	return x, dynamo.State{0, -v.X0}
}
