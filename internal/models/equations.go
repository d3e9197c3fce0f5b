// Package models holds the model layer the integrators drive: a Manager
// that assembles residuals and Jacobians for any DAE written as
// R(t, x, x') = 0, and a handful of sample mechanical systems.
package models

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// Equations is a DAE R(t, x, x') = 0. For algebraic DOFs x' holds the
// time integral of the variable, which the residual normally ignores.
type Equations interface {
	Name() string
	Dofs() []dynamo.Dof
	// Residual overwrites res with R(t, x, xp).
	Residual(t float64, x, xp, res dynamo.State)
	// Initial returns a consistent starting point at t = 0.
	Initial() (x, xp dynamo.State)
}

// Differentiable equations provide analytic partials. dRdx and dRdxp are
// zeroed by the caller. Equations without them get central differences.
type Differentiable interface {
	Partials(t float64, x, xp dynamo.State, dRdx, dRdxp *mat.Dense)
}

// Energetic equations report their total mechanical energy.
type Energetic interface {
	Energy(x, xp dynamo.State) float64
}

// numericPartials fills dRdx and dRdxp by central differences.
func numericPartials(eq Equations, t float64, x, xp dynamo.State, dRdx, dRdxp *mat.Dense) {
	n := len(x)
	rp := make(dynamo.State, n)
	rm := make(dynamo.State, n)
	col := func(v dynamo.State, j int, dst *mat.Dense) {
		orig := v[j]
		h := 1e-7 * math.Max(1, math.Abs(orig))
		v[j] = orig + h
		eq.Residual(t, x, xp, rp)
		v[j] = orig - h
		eq.Residual(t, x, xp, rm)
		v[j] = orig
		for i := 0; i < n; i++ {
			dst.Set(i, j, (rp[i]-rm[i])/(2*h))
		}
	}
	for j := 0; j < n; j++ {
		col(x, j, dRdx)
		col(xp, j, dRdxp)
	}
}

// ODE is an explicit system x' = f(t, x).
type ODE interface {
	Name() string
	StateDim() int
	Derivative(t float64, x dynamo.State) dynamo.State
	Initial() dynamo.State
}

// ExplicitODE wraps an ODE as the all-differential DAE R = f(t, x) - x'.
type ExplicitODE struct {
	ODE
	dofs []dynamo.Dof
}

func FromODE(o ODE) *ExplicitODE {
	dofs := make([]dynamo.Dof, o.StateDim())
	for i := range dofs {
		dofs[i] = dynamo.Dof{Order: dynamo.Differential}
	}
	if d, ok := o.(interface{ Describe(i int) string }); ok {
		for i := range dofs {
			dofs[i].Description = d.Describe(i)
		}
	}
	return &ExplicitODE{ODE: o, dofs: dofs}
}

func (e *ExplicitODE) Dofs() []dynamo.Dof { return e.dofs }

func (e *ExplicitODE) Residual(t float64, x, xp, res dynamo.State) {
	f := e.Derivative(t, x)
	for i := range res {
		res[i] = f[i] - xp[i]
	}
}

func (e *ExplicitODE) Initial() (dynamo.State, dynamo.State) {
	x := e.ODE.Initial()
	return x, e.Derivative(0, x)
}

func (e *ExplicitODE) Energy(x, xp dynamo.State) float64 {
	if en, ok := e.ODE.(interface{ Energy(dynamo.State) float64 }); ok {
		return en.Energy(x)
	}
	return math.NaN()
}
