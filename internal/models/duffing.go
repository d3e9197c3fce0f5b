package models

import (
	"math"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// Duffing is the forced oscillator
// x'' = -Delta x' - Alpha x - Beta x^3 + Gamma cos(Omega t).
type Duffing struct {
	Alpha, Beta, Delta, Gamma, Omega float64
	X0                               float64
}

var _ ODE = (*Duffing)(nil)

func NewDuffing() *Duffing {
	return &Duffing{Alpha: -1, Beta: 1, Delta: 0.3, Gamma: 0.5, Omega: 1.2, X0: 1}
}

func (d *Duffing) Name() string  { return "duffing" }
func (d *Duffing) StateDim() int { return 2 }

func (d *Duffing) Describe(i int) string { return [...]string{"x", "v"}[i] }

func (d *Duffing) Initial() dynamo.State { return dynamo.State{d.X0, 0} }

func (d *Duffing) Derivative(t float64, s dynamo.State) dynamo.State {
	x, v := s[0], s[1]
	return dynamo.State{v, -d.Delta*v - d.Alpha*x - d.Beta*x*x*x + d.Gamma*math.Cos(d.Omega*t)}
}

// Energy excludes the work of the forcing term.
func (d *Duffing) Energy(s dynamo.State) float64 {
	x, v := s[0], s[1]
	return 0.5*v*v + 0.5*d.Alpha*x*x + 0.25*d.Beta*x*x*x*x
}
