package nonlin

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/linsolve"
)

// cubic is R_i = c_i - x_i³ - x_i, whose Jacobian with respect to the
// increment is diag(3x²+1).
type cubic struct {
	x, c       dynamo.State
	structural int
	nan        bool
	singular   bool
	jacobians  int
	residuals  int
}

func newCubic(c ...float64) *cubic {
	return &cubic{x: make(dynamo.State, len(c)), c: dynamo.State(c)}
}

func (p *cubic) Residual(res dynamo.State) error {
	p.residuals++
	for i := range res {
		res[i] = p.c[i] - p.x[i]*p.x[i]*p.x[i] - p.x[i]
	}
	if p.nan {
		res[0] = math.NaN()
	}
	if p.structural > 0 {
		p.structural--
		return dynamo.ErrChangedEquationStructure
	}
	return nil
}

func (p *cubic) Jacobian(jac *mat.Dense) error {
	p.jacobians++
	for i, xi := range p.x {
		if p.singular {
			continue
		}
		jac.Set(i, i, 3*xi*xi+1)
	}
	return nil
}

func (p *cubic) Update(sol dynamo.State) error {
	p.x.AddScaled(1, sol)
	return nil
}

func (p *cubic) EvalProd(_ float64, _, w, z dynamo.State) error {
	for i, xi := range p.x {
		z[i] = (3*xi*xi + 1) * w[i]
	}
	return nil
}

func (p *cubic) TestScale(dynamo.Scaler) (float64, float64) { return 1, 1 }

func TestNewtonConverges(t *testing.T) {
	p := newCubic(2, 10)
	n := NewNewton(linsolve.New(2))

	st, err := n.Solve(p, 20, 1e-12, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.x[0], 1e-9)
	assert.InDelta(t, 2.0, p.x[1], 1e-9)
	assert.LessOrEqual(t, st.Err, 1e-12)
	assert.Greater(t, st.Iters, 0)
	assert.Equal(t, st.Iters, p.jacobians)
}

func TestNewtonAlreadyConverged(t *testing.T) {
	p := newCubic(0)
	st, err := NewNewton(linsolve.New(1)).Solve(p, 5, 1e-12, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Iters)
	assert.Equal(t, 0, p.jacobians)
}

func TestNewtonNoConvergence(t *testing.T) {
	p := newCubic(50)
	st, err := NewNewton(linsolve.New(1)).Solve(p, 1, 1e-12, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, dynamo.ErrNoConvergence)
	assert.Equal(t, dynamo.KindRetryable, dynamo.KindOf(err))
	assert.Equal(t, 1, st.Iters)
	assert.Greater(t, st.Err, 0.0)
}

func TestNewtonResidualScale(t *testing.T) {
	plain, err := NewNewton(linsolve.New(1)).Solve(newCubic(50), 1, 1e-12, 0)
	require.ErrorIs(t, err, dynamo.ErrNoConvergence)

	scaled, err := NewNewton(linsolve.New(1), WithScaler(dynamo.UniformScale(0.25))).Solve(newCubic(50), 1, 1e-12, 0)
	require.ErrorIs(t, err, dynamo.ErrNoConvergence)
	assert.InDelta(t, plain.Err/4, scaled.Err, 1e-9*plain.Err)

	// a loose enough weight accepts the first residual
	st, err := NewNewton(linsolve.New(1), WithScaler(dynamo.UniformScale(1e-6))).Solve(newCubic(2), 5, 1e-3, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Iters)
}

func TestNewtonDiverged(t *testing.T) {
	p := newCubic(1)
	p.nan = true
	_, err := NewNewton(linsolve.New(1)).Solve(p, 10, 1e-12, 0)
	assert.ErrorIs(t, err, dynamo.ErrDiverged)
}

func TestNewtonDivergenceCheck(t *testing.T) {
	p := &grower{}
	_, err := NewNewton(linsolve.New(1), WithDivergenceCheck(2)).Solve(p, 50, 1e-12, 0)
	assert.ErrorIs(t, err, dynamo.ErrDiverged)
}

func TestNewtonFactorFailure(t *testing.T) {
	p := newCubic(1)
	p.singular = true
	_, err := NewNewton(linsolve.New(1)).Solve(p, 10, 1e-12, 0)
	assert.ErrorIs(t, err, dynamo.ErrFactor)
}

func TestNewtonStructuralChangeForcesIteration(t *testing.T) {
	p := newCubic(0)
	p.structural = 1
	st, err := NewNewton(linsolve.New(1)).Solve(p, 5, 1e-12, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Iters)
	assert.Equal(t, 1, p.jacobians)
	assert.Equal(t, 2, p.residuals)
}

func TestNewtonSolutionTolerance(t *testing.T) {
	p := newCubic(2)
	st, err := NewNewton(linsolve.New(1)).Solve(p, 50, 0, 1e-3)
	require.NoError(t, err)
	assert.LessOrEqual(t, st.SolErr, 1e-3)
	assert.InDelta(t, 1.0, p.x[0], 1e-3)
}

func TestModifiedNewtonReusesJacobian(t *testing.T) {
	full := newCubic(2)
	full.x[0] = 0.9
	_, err := NewNewton(linsolve.New(1)).Solve(full, 50, 1e-10, 0)
	require.NoError(t, err)

	mod := newCubic(2)
	mod.x[0] = 0.9
	st, err := NewNewton(linsolve.New(1), WithJacobianRebuild(3)).Solve(mod, 50, 1e-10, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mod.x[0], 1e-8)
	assert.Less(t, mod.jacobians, st.Iters)
}

func TestNewtonKrylovConverges(t *testing.T) {
	p := newCubic(2, 10, -2)
	nk := NewNewtonKrylov(3, KrylovParams{Eta: 1e-10})

	st, err := nk.Solve(p, 30, 1e-10, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.x[0], 1e-8)
	assert.InDelta(t, 2.0, p.x[1], 1e-8)
	assert.InDelta(t, -1.0, p.x[2], 1e-8)
	assert.Equal(t, 0, p.jacobians)
	assert.Greater(t, st.Iters, 0)
}

// grower has a residual that triples on every update.
type grower struct{ r float64 }

func (g *grower) Residual(res dynamo.State) error {
	if g.r == 0 {
		g.r = 1
	}
	res[0] = g.r
	return nil
}
func (g *grower) Jacobian(jac *mat.Dense) error                  { jac.Set(0, 0, 1); return nil }
func (g *grower) Update(dynamo.State) error                      { g.r *= 3; return nil }
func (g *grower) EvalProd(_ float64, _, w, z dynamo.State) error { copy(z, w); return nil }
func (g *grower) TestScale(dynamo.Scaler) (float64, float64)     { return 1, 1 }
