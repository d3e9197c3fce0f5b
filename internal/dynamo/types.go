package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Norm(s, 2)
}

// Dot returns the inner product of s and other; both must have the same length.
func (s State) Dot(other State) float64 {
	return floats.Dot(s, other)
}

// Reset zeroes s in place.
func (s State) Reset() {
	for i := range s {
		s[i] = 0
	}
}

// CopyFrom overwrites s with src. Lengths must match.
func (s State) CopyFrom(src State) {
	if len(s) != len(src) {
		panic(fmt.Sprintf("dynamo: copy of %d values into state of size %d", len(src), len(s)))
	}
	copy(s, src)
}

// AddScaled performs s += alpha*other in place.
func (s State) AddScaled(alpha float64, other State) {
	floats.AddScaled(s, alpha, other)
}

// DofOrder classifies a degree of freedom.
type DofOrder int

const (
	// Differential DOFs are governed by an ODE and carry a meaningful derivative.
	Differential DofOrder = iota
	// Algebraic DOFs are governed by an instantaneous relation, e.g. a multiplier.
	Algebraic
)

func (o DofOrder) String() string {
	switch o {
	case Differential:
		return "differential"
	case Algebraic:
		return "algebraic"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Dof describes one scalar unknown. Orders are fixed for a whole run.
type Dof struct {
	Order       DofOrder
	Description string
}

// StepChange tells a method whether the step is new or a repetition of a
// rejected one.
type StepChange int

const (
	NewStep StepChange = iota
	RepeatStep
)
