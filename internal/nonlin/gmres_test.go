package nonlin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

func denseApply(a *mat.Dense) applyFunc {
	return func(v, out dynamo.State) error {
		var r mat.VecDense
		r.MulVec(a, mat.NewVecDense(len(v), v))
		for i := range out {
			out[i] = r.AtVec(i)
		}
		return nil
	}
}

func TestGMRES(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		4, 1, 0,
		2, 5, 1,
		0, 3, 6,
	})
	b := dynamo.State{1, 2, 3}

	tests := []struct {
		name    string
		restart int
	}{
		{"full", 10},
		{"restarted", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := make(dynamo.State, 3)
			_, err := newGMRES(tt.restart, 2000).solve(denseApply(a), b, x, 1e-12)
			require.NoError(t, err)

			var want mat.VecDense
			require.NoError(t, want.SolveVec(a, mat.NewVecDense(3, b)))
			for i := range x {
				assert.InDelta(t, want.AtVec(i), x[i], 1e-9)
			}
		})
	}
}

func TestGMRESZeroRHS(t *testing.T) {
	x := dynamo.State{5, 5}
	iters, err := newGMRES(5, 5).solve(denseApply(mat.NewDense(2, 2, []float64{1, 0, 0, 1})), dynamo.State{0, 0}, x, 1e-10)
	require.NoError(t, err)
	assert.Equal(t, 0, iters)
	assert.Equal(t, dynamo.State{0, 0}, x)
}

func TestGMRESBudget(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		1, 2, 0,
		0, 1, 2,
		2, 0, 1,
	})
	x := make(dynamo.State, 3)
	_, err := newGMRES(1, 2).solve(denseApply(a), dynamo.State{1, 0, 0}, x, 1e-14)
	assert.ErrorIs(t, err, dynamo.ErrNoConvergence)
}
