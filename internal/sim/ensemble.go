package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Job is one independent simulation of an ensemble.
type Job struct {
	Sim    *Simulator
	X0     []float64
	XP0    []float64
	Config Config
}

// Ensemble runs independent simulations concurrently, at most limit at a
// time. Each job must own its simulator. The first failure cancels the
// rest; results of jobs that finished are still returned.
type Ensemble struct {
	limit int
}

func NewEnsemble(limit int) *Ensemble {
	return &Ensemble{limit: limit}
}

func (e *Ensemble) Run(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := job.Sim.Run(ctx, job.X0, job.XP0, job.Config)
			results[i] = res
			return err
		})
	}
	err := g.Wait()
	return results, err
}
