package optim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/stepsol/internal/config"
	"github.com/san-kum/stepsol/internal/experiment"
)

func TestGridSearchRho(t *testing.T) {
	base := config.DefaultConfig()
	base.Model = "spring_mass"
	base.Method = "ms"
	base.Duration = 2
	base.Dt = 0.05

	g, err := NewGridSearch(experiment.NewRegistry(), nil, Param{Name: "rho", Values: []float64{0, 0.5, 1}})
	require.NoError(t, err)

	out, err := g.Search(context.Background(), base, "energy_drift")
	require.NoError(t, err)
	assert.Equal(t, 3, out.Evaluated)
	assert.Equal(t, 0, out.Failed)
	assert.Equal(t, 1.0, out.Params["rho"])
}

func TestGridSearchSkipsInvalidPoints(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 0.2

	g, err := NewGridSearch(experiment.NewRegistry(), nil,
		Param{Name: "dt", Values: []float64{-1, 0.02}},
		Param{Name: "tol", Values: []float64{1e-10}},
	)
	require.NoError(t, err)

	out, err := g.Search(context.Background(), base, "mean_iterations")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Evaluated)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 0.02, out.Params["dt"])
}

func TestGridSearchUnknownMetric(t *testing.T) {
	g, err := NewGridSearch(experiment.NewRegistry(), nil, Param{Name: "dt", Values: []float64{0.1}})
	require.NoError(t, err)
	base := config.DefaultConfig()
	base.Duration = 0.2
	_, err = g.Search(context.Background(), base, "nope")
	assert.Error(t, err)
}

func TestNewGridSearchRejects(t *testing.T) {
	_, err := NewGridSearch(experiment.NewRegistry(), nil, Param{Name: "mass", Values: []float64{1}})
	assert.Error(t, err)
	_, err = NewGridSearch(experiment.NewRegistry(), nil, Param{Name: "dt"})
	assert.Error(t, err)
}

func TestGridSearchCancelled(t *testing.T) {
	g, err := NewGridSearch(experiment.NewRegistry(), nil, Param{Name: "dt", Values: []float64{0.1, 0.05}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Search(ctx, config.DefaultConfig(), "mean_iterations")
	assert.ErrorIs(t, err, context.Canceled)
}
