package linsolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/stepsol/internal/dynamo"
)

func TestDenseSolve(t *testing.T) {
	d := New(2)
	a := d.Matrix()
	a.Set(0, 0, 2)
	a.Set(0, 1, 1)
	a.Set(1, 0, 0)
	a.Set(1, 1, 4)
	copy(d.Res(), []float64{5, 8})

	require.NoError(t, d.Solve())
	assert.InDelta(t, 1.5, d.Sol()[0], 1e-12)
	assert.InDelta(t, 2.0, d.Sol()[1], 1e-12)
}

func TestDenseSolveTransposed(t *testing.T) {
	d := New(2)
	a := d.Matrix()
	a.Set(0, 0, 2)
	a.Set(0, 1, 1)
	a.Set(1, 1, 4)
	// A^T = [2 0; 1 4]
	copy(d.Res(), []float64{4, 10})

	require.NoError(t, d.SolveT())
	assert.InDelta(t, 2.0, d.Sol()[0], 1e-12)
	assert.InDelta(t, 2.0, d.Sol()[1], 1e-12)
}

func TestDenseReusesFactorization(t *testing.T) {
	d := New(1)
	d.Matrix().Set(0, 0, 4)
	d.Res()[0] = 8
	require.NoError(t, d.Solve())
	assert.Equal(t, 2.0, d.Sol()[0])

	d.Res()[0] = 2
	require.NoError(t, d.Solve())
	assert.Equal(t, 0.5, d.Sol()[0])
}

func TestDenseSingular(t *testing.T) {
	d := New(2)
	a := d.Matrix()
	a.Set(0, 0, 1)
	a.Set(0, 1, 2)
	a.Set(1, 0, 2)
	a.Set(1, 1, 4)

	err := d.Solve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, dynamo.ErrFactor))
	assert.Equal(t, dynamo.KindRetryable, dynamo.KindOf(err))

	d.MatrReset()
	assert.Equal(t, 0.0, d.Matrix().At(0, 1))
}

func TestNewPanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}
