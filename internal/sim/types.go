// Package sim is the outer simulation loop. It owns the converged-state
// history, the linear solution manager and the nonlinear solver, and calls
// Advance on the configured integrator once per time step.
package sim

import (
	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
)

// Model is the model layer of a forward simulation.
type Model interface {
	integrators.DataManager
	SetTime(t float64)
}

// InverseModel is the model layer of an inverse dynamics simulation.
type InverseModel interface {
	integrators.InverseDataManager
	SetTime(t float64)
}

// Forward is an integrator the simulator can bind to a Model.
type Forward interface {
	integrators.Integrator
	SetDataManager(dm integrators.DataManager)
}

// StepInfo describes one converged step.
type StepInfo struct {
	Step   int
	Time   float64
	X      dynamo.State
	XPrime dynamo.State
	Stats  dynamo.Stats
}

type Metric interface {
	Name() string
	Observe(info StepInfo)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(info StepInfo)
}

// FailureObserver is an Observer that also wants to hear about failed steps.
type FailureObserver interface {
	Observer
	OnFailure(step int, t float64, err error)
}

// EnergyComputer models report their mechanical energy at the linked state.
type EnergyComputer interface {
	Energy() float64
}

type Config struct {
	Dt       float64
	Duration float64
	// T0 is the initial time.
	T0 float64
	// Derivatives runs the derivative solver at T0 before the first step.
	Derivatives   bool
	ValidateState bool
}

type Result struct {
	Times       []float64
	States      []dynamo.State
	Derivatives []dynamo.State
	Iterations  []int
	Residuals   []float64
	StepsTaken  int
	TotalIters  int
	// InitialIters is the iteration count of the derivative solve.
	InitialIters int
	EnergyDrift  float64
	Metrics      map[string]float64
}

type InverseResult struct {
	Times         []float64
	States        []dynamo.State
	Velocities    []dynamo.State
	Accelerations []dynamo.State
	Forces        []dynamo.State
	Iterations    []int
	StepsTaken    int
}
