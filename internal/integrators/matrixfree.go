package integrators

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/dynamo"
)

const eps = 2.220446049250313e-16

// perturbable is the part of a Problem the matrix-free product needs.
type perturbable interface {
	Residual(res dynamo.State) error
	Update(sol dynamo.State) error
}

// matrixFree approximates J·w by a one-sided directional difference of the
// residual. The working state is restored bit for bit afterwards.
type matrixFree struct {
	xtau   dynamo.State
	saved  [4]dynamo.State
	sizeOf int
}

func (m *matrixFree) ensureScratch(n int) {
	if m.sizeOf == n {
		return
	}
	m.xtau = make(dynamo.State, n)
	for i := range m.saved {
		m.saved[i] = nil
	}
	m.sizeOf = n
}

func (m *matrixFree) save(slot int, s dynamo.State) {
	if s == nil {
		return
	}
	if len(m.saved[slot]) != len(s) {
		m.saved[slot] = make(dynamo.State, len(s))
	}
	copy(m.saved[slot], s)
}

func (m *matrixFree) restore(slot int, s dynamo.State) {
	if s == nil {
		return
	}
	copy(s, m.saved[slot])
}

// evalProd computes z ≈ J·w around the current working state. refresh is
// called once the state has been restored so the model can recompute
// anything derived from it.
func (m *matrixFree) evalProd(ws *workspace, p perturbable, refresh func(), tau float64, f0, w, z dynamo.State) error {
	if !ws.bound() {
		return errors.Wrap(dynamo.ErrUnbound, "matrix-free product")
	}
	n := len(w)
	if len(z) != n || len(f0) != n || len(ws.x) != n {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "matrix-free product of size %d", n)
	}

	nw := w.Norm()
	if nw < eps {
		z.Reset()
		return nil
	}

	m.ensureScratch(n)
	bufs := [4]dynamo.State{ws.x, ws.xp, ws.xpp, ws.lambda}
	for i, b := range bufs {
		m.save(i, b)
	}

	sigma := ws.x.Dot(w) / nw
	if math.Abs(sigma) > eps {
		tau = math.Copysign(tau*math.Max(1, math.Abs(sigma)), sigma)
	}
	tau /= nw

	for i := range m.xtau {
		m.xtau[i] = tau * w[i]
	}

	z.Reset()
	err := p.Update(m.xtau)
	if err == nil {
		err = p.Residual(z)
		if errors.Is(err, dynamo.ErrChangedEquationStructure) {
			err = nil
		}
	}

	for i, b := range bufs {
		m.restore(i, b)
	}
	refresh()

	if err != nil {
		return errors.Wrap(err, "matrix-free product")
	}
	for i := range z {
		z[i] = -(z[i] - f0[i]) / tau
	}
	return nil
}
