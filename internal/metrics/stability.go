package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/sim"
)

// Stability is the fraction of converged steps whose state and derivative
// are finite and bounded by the threshold in the max norm.
type Stability struct {
	threshold float64
	bad       int
	steps     int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) bounded(v dynamo.State) bool {
	if len(v) == 0 {
		return true
	}
	// the max norm of a vector holding NaN is NaN, which fails the comparison
	return floats.Norm(v, math.Inf(1)) <= s.threshold
}

func (s *Stability) Observe(info sim.StepInfo) {
	s.steps++
	if !s.bounded(info.X) || !s.bounded(info.XPrime) {
		s.bad++
	}
}

func (s *Stability) Value() float64 {
	if s.steps == 0 {
		return 1
	}
	return 1 - float64(s.bad)/float64(s.steps)
}

func (s *Stability) Reset() { s.bad, s.steps = 0, 0 }
