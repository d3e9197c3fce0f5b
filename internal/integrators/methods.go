package integrators

import (
	"math"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// CrankNicolson is the trapezoidal rule. The derivative is predicted
// constant, the state from the trapezoidal quadrature.
type CrankNicolson struct {
	b0 float64
}

var _ Step1Method = (*CrankNicolson)(nil)

func NewCrankNicolson() *CrankNicolson { return &CrankNicolson{} }

func (m *CrankNicolson) Name() string { return "crank-nicolson" }

func (m *CrankNicolson) SetCoef(dt, _ float64, _ dynamo.StepChange) Coef {
	m.b0 = dt / 2
	return Coef{B0Differential: m.b0, B0Algebraic: m.b0}
}

func (m *CrankNicolson) PredDer(_, xpm1 float64) float64 { return xpm1 }

func (m *CrankNicolson) PredState(xm1, xp, xpm1 float64) float64 {
	return xm1 + m.b0*(xp+xpm1)
}

func (m *CrankNicolson) PredDerAlg(_, xm1 float64) float64 { return xm1 }

func (m *CrankNicolson) PredStateAlg(xim1, x, xm1 float64) float64 {
	return xim1 + m.b0*(x+xm1)
}

// ImplicitEuler is backward Euler. First order and strongly damped; used
// as the starter for two-step methods.
type ImplicitEuler struct {
	dt float64
}

var _ Step1Method = (*ImplicitEuler)(nil)

func NewImplicitEuler() *ImplicitEuler { return &ImplicitEuler{} }

func (m *ImplicitEuler) Name() string { return "implicit-euler" }

func (m *ImplicitEuler) SetCoef(dt, _ float64, _ dynamo.StepChange) Coef {
	m.dt = dt
	return Coef{B0Differential: dt, B0Algebraic: dt}
}

func (m *ImplicitEuler) PredDer(_, xpm1 float64) float64 { return xpm1 }

func (m *ImplicitEuler) PredState(xm1, xp, _ float64) float64 { return xm1 + m.dt*xp }

func (m *ImplicitEuler) PredDerAlg(_, xm1 float64) float64 { return xm1 }

func (m *ImplicitEuler) PredStateAlg(xim1, x, _ float64) float64 { return xim1 + m.dt*x }

// Multistep is the two-step family with tunable asymptotic spectral radius
// rho. rho = 1 gives no numerical dissipation, rho = 0 reduces the corrector
// to BDF2 on a constant step. The derivative is predicted by cubic Hermite
// extrapolation. Both predictor and corrector take the history spacing as
// dt/alpha; the corrector keeps a and b0 fixed and places b1, b2 so that
// quadratic trajectories are integrated exactly for any step ratio.
type Multistep struct {
	rho float64

	dt    float64
	mp    [2]float64
	np    [2]float64
	a     [2]float64
	b     [3]float64
	alpha float64
	b0Alg float64
}

var _ Step2Method = (*Multistep)(nil)

// NewMultistep clamps rho to [0, 1].
func NewMultistep(rho float64) *Multistep {
	return &Multistep{rho: math.Min(1, math.Max(0, rho))}
}

func (m *Multistep) Name() string { return "multistep" }

func (m *Multistep) Rho() float64 { return m.rho }

func (m *Multistep) SetCoef(dt, alpha float64, _ dynamo.StepChange) Coef {
	if alpha <= 0 {
		alpha = 1
	}
	m.dt, m.alpha = dt, alpha

	m.mp[0] = -6 * alpha * alpha * (1 + alpha) / dt
	m.mp[1] = -m.mp[0]
	m.np[0] = 1 + 4*alpha + 3*alpha*alpha
	m.np[1] = alpha * (2 + 3*alpha)

	r := (1 - m.rho) * (1 - m.rho)
	den := 4 - r
	beta := (3*r + 4*(2*m.rho-1)) / den
	delta := 0.5 * r / den
	m.a[0] = 1 - beta
	m.a[1] = beta
	m.b[0] = dt * (delta + 0.5)
	m.b[1] = dt * (0.5 + beta/(2*alpha) - delta*(1+alpha))
	m.b[2] = dt * (beta/(2*alpha) + delta*alpha)
	m.b0Alg = dt / 2

	return Coef{B0Differential: m.b[0], B0Algebraic: m.b0Alg}
}

func (m *Multistep) PredDer(xm1, xm2, xpm1, xpm2 float64) float64 {
	return m.mp[0]*xm1 + m.mp[1]*xm2 + m.np[0]*xpm1 + m.np[1]*xpm2
}

func (m *Multistep) PredState(xm1, xm2, xp, xpm1, xpm2 float64) float64 {
	return m.a[0]*xm1 + m.a[1]*xm2 + m.b[0]*xp + m.b[1]*xpm1 + m.b[2]*xpm2
}

// PredDerAlg extrapolates the algebraic variable linearly in time.
func (m *Multistep) PredDerAlg(_, xm1, xm2 float64) float64 {
	return (1+m.alpha)*xm1 - m.alpha*xm2
}

func (m *Multistep) PredStateAlg(xim1, x, xm1, _ float64) float64 {
	return xim1 + m.b0Alg*(x+xm1)
}
