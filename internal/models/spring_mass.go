package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
	DefaultLength    = 1.0
	DefaultGravity   = 9.81
)

// SpringMass is a chain of masses joined by springs and dampers, fixed to
// the ground at the left end and, when Stiffness has NumMasses+1 entries,
// at the right end too. DOFs are the positions followed by the velocities.
//
//	R_q = v - q'
//	R_v = F(q, v) - M v'
type SpringMass struct {
	NumMasses int
	Masses    []float64
	Stiffness []float64
	Damping   []float64
	X0        float64
}

var (
	_ Equations      = (*SpringMass)(nil)
	_ Differentiable = (*SpringMass)(nil)
	_ Energetic      = (*SpringMass)(nil)
)

func NewSpringMass() *SpringMass {
	return &SpringMass{
		NumMasses: 1,
		Masses:    []float64{DefaultMass},
		Stiffness: []float64{DefaultStiffness},
		Damping:   []float64{DefaultDamping},
		X0:        1,
	}
}

func NewSpringMassChain(n int) *SpringMass {
	masses := make([]float64, n)
	stiffness := make([]float64, n+1)
	damping := make([]float64, n)
	for i := 0; i < n; i++ {
		masses[i] = DefaultMass
		stiffness[i] = DefaultStiffness
		damping[i] = 0.2
	}
	stiffness[n] = DefaultStiffness
	return &SpringMass{NumMasses: n, Masses: masses, Stiffness: stiffness, Damping: damping, X0: 1}
}

func (s *SpringMass) Name() string { return "spring_mass" }

func (s *SpringMass) Dofs() []dynamo.Dof {
	n := s.NumMasses
	dofs := make([]dynamo.Dof, 2*n)
	for i := 0; i < n; i++ {
		dofs[i] = dynamo.Dof{Order: dynamo.Differential, Description: fmt.Sprintf("q%d", i)}
		dofs[n+i] = dynamo.Dof{Order: dynamo.Differential, Description: fmt.Sprintf("v%d", i)}
	}
	return dofs
}

// stiffness returns the coupling of mass i to mass j in the spring force.
func (s *SpringMass) stiffness(i, j int) float64 {
	n := s.NumMasses
	switch {
	case i == j:
		k := s.Stiffness[i]
		if i < n-1 || len(s.Stiffness) > n {
			k += s.Stiffness[i+1]
		}
		return -k
	case j == i-1:
		return s.Stiffness[i]
	case j == i+1:
		return s.Stiffness[i+1]
	}
	return 0
}

func (s *SpringMass) Residual(_ float64, x, xp, res dynamo.State) {
	n := s.NumMasses
	for i := 0; i < n; i++ {
		res[i] = x[n+i] - xp[i]
		f := -s.Damping[i] * x[n+i]
		for j := i - 1; j <= i+1; j++ {
			if j >= 0 && j < n {
				f += s.stiffness(i, j) * x[j]
			}
		}
		res[n+i] = f - s.Masses[i]*xp[n+i]
	}
}

func (s *SpringMass) Partials(_ float64, _, _ dynamo.State, dRdx, dRdxp *mat.Dense) {
	n := s.NumMasses
	for i := 0; i < n; i++ {
		dRdx.Set(i, n+i, 1)
		dRdxp.Set(i, i, -1)
		for j := i - 1; j <= i+1; j++ {
			if j >= 0 && j < n {
				dRdx.Set(n+i, j, s.stiffness(i, j))
			}
		}
		dRdx.Set(n+i, n+i, -s.Damping[i])
		dRdxp.Set(n+i, n+i, -s.Masses[i])
	}
}

func (s *SpringMass) Initial() (dynamo.State, dynamo.State) {
	n := s.NumMasses
	x := make(dynamo.State, 2*n)
	x[0] = s.X0
	xp := make(dynamo.State, 2*n)
	res := make(dynamo.State, 2*n)
	s.Residual(0, x, xp, res)
	// with xp = 0 the residual is (v, F), so it is the derivative scaled by mass
	for i := 0; i < n; i++ {
		xp[i] = res[i]
		xp[n+i] = res[n+i] / s.Masses[i]
	}
	return x, xp
}

func (s *SpringMass) Energy(x, _ dynamo.State) float64 {
	n := s.NumMasses
	energy := 0.0
	for i := 0; i < n; i++ {
		v := x[n+i]
		energy += 0.5 * s.Masses[i] * v * v
	}
	for i := 0; i < n; i++ {
		stretch := x[i]
		if i > 0 {
			stretch -= x[i-1]
		}
		energy += 0.5 * s.Stiffness[i] * stretch * stretch
	}
	if len(s.Stiffness) > n {
		energy += 0.5 * s.Stiffness[n] * x[n-1] * x[n-1]
	}
	return energy
}
