package metrics

import "github.com/san-kum/stepsol/internal/sim"

// Iterations is the mean number of nonlinear iterations per step.
type Iterations struct {
	name  string
	sum   int
	max   int
	steps int
}

func NewIterations() *Iterations {
	return &Iterations{name: "mean_iterations"}
}

func (it *Iterations) Name() string { return it.name }

func (it *Iterations) Observe(info sim.StepInfo) {
	it.sum += info.Stats.Iters
	if info.Stats.Iters > it.max {
		it.max = info.Stats.Iters
	}
	it.steps++
}

func (it *Iterations) Value() float64 {
	if it.steps == 0 {
		return 0
	}
	return float64(it.sum) / float64(it.steps)
}

// Max is the largest iteration count seen.
func (it *Iterations) Max() int { return it.max }

func (it *Iterations) Reset() {
	it.sum = 0
	it.max = 0
	it.steps = 0
}

// MaxResidual tracks the largest converged residual error.
type MaxResidual struct {
	name string
	max  float64
}

func NewMaxResidual() *MaxResidual {
	return &MaxResidual{name: "max_residual"}
}

func (m *MaxResidual) Name() string { return m.name }

func (m *MaxResidual) Observe(info sim.StepInfo) {
	if info.Stats.Err > m.max {
		m.max = info.Stats.Err
	}
}

func (m *MaxResidual) Value() float64 { return m.max }
func (m *MaxResidual) Reset()         { m.max = 0 }
