package metrics

import (
	"math"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/sim"
)

// EnergyFunc evaluates the energy of a state and its derivative.
type EnergyFunc func(x, xp dynamo.State) float64

// EnergyDrift is the largest relative energy change over the run. The first
// observed step is the reference.
type EnergyDrift struct {
	name          string
	energy        EnergyFunc
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(energy EnergyFunc) *EnergyDrift {
	return &EnergyDrift{
		name:   "energy_drift",
		energy: energy,
	}
}

// SetReference fixes the reference energy before the first step.
func (e *EnergyDrift) SetReference(x, xp dynamo.State) {
	e.initialEnergy = e.energy(x, xp)
	e.samples = 1
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(info sim.StepInfo) {
	energy := e.energy(info.X, info.XPrime)
	if math.IsNaN(energy) {
		return
	}
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
