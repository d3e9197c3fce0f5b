package models

import (
	"math"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// DoublePendulum is the planar double pendulum in joint angles, written as
// an explicit ODE. Wrap it with FromODE to integrate it; its partials come
// from central differences.
type DoublePendulum struct {
	M1, M2  float64
	L1, L2  float64
	Gravity float64
	Theta0  [2]float64
}

var _ ODE = (*DoublePendulum)(nil)

func NewDoublePendulum() *DoublePendulum {
	return &DoublePendulum{
		M1: DefaultMass, M2: DefaultMass,
		L1: DefaultLength, L2: DefaultLength,
		Gravity: DefaultGravity,
		Theta0:  [2]float64{math.Pi / 2, math.Pi / 2},
	}
}

func (d *DoublePendulum) Name() string  { return "double_pendulum" }
func (d *DoublePendulum) StateDim() int { return 4 }

func (d *DoublePendulum) Describe(i int) string {
	return [...]string{"theta1", "theta2", "omega1", "omega2"}[i]
}

func (d *DoublePendulum) Initial() dynamo.State {
	return dynamo.State{d.Theta0[0], d.Theta0[1], 0, 0}
}

func (d *DoublePendulum) Derivative(_ float64, x dynamo.State) dynamo.State {
	theta1, theta2, omega1, omega2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	delta := theta2 - theta1
	sinD, cosD := math.Sin(delta), math.Cos(delta)
	den1 := (m1+m2)*l1 - m2*l1*cosD*cosD
	den2 := (l2 / l1) * den1

	alpha1 := (m2*l1*omega1*omega1*sinD*cosD +
		m2*g*math.Sin(theta2)*cosD +
		m2*l2*omega2*omega2*sinD -
		(m1+m2)*g*math.Sin(theta1)) / den1
	alpha2 := (-m2*l2*omega2*omega2*sinD*cosD +
		(m1+m2)*g*math.Sin(theta1)*cosD -
		(m1+m2)*l1*omega1*omega1*sinD -
		(m1+m2)*g*math.Sin(theta2)) / den2

	return dynamo.State{omega1, omega2, alpha1, alpha2}
}

func (d *DoublePendulum) Energy(x dynamo.State) float64 {
	theta1, theta2, omega1, omega2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	v1sq := l1 * l1 * omega1 * omega1
	v2sq := l1*l1*omega1*omega1 + l2*l2*omega2*omega2 +
		2*l1*l2*omega1*omega2*math.Cos(theta1-theta2)
	y1 := -l1 * math.Cos(theta1)
	y2 := y1 - l2*math.Cos(theta2)
	return 0.5*m1*v1sq + 0.5*m2*v2sq + m1*g*y1 + m2*g*y2
}
