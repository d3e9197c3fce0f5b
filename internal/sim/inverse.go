package sim

import (
	"context"
	"math"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
)

// InverseSimulator steps an inverse dynamics problem: at every time the
// prescribed motion is solved for, then the actuator forces.
type InverseSimulator struct {
	model InverseModel
	integ *integrators.InverseDynamicsStepSolver
	opts  options
}

var _ integrators.Driver = (*InverseSimulator)(nil)

func NewInverse(model InverseModel, integ *integrators.InverseDynamicsStepSolver, opts ...Option) *InverseSimulator {
	integ.SetDataManager(model)
	return &InverseSimulator{
		model: model,
		integ: integ,
		opts:  newOptions(len(model.Dofs()), opts),
	}
}

func (s *InverseSimulator) NonlinearSolver() dynamo.NonlinearSolver { return s.opts.nl }
func (s *InverseSimulator) SolutionManager() dynamo.SolutionManager { return s.opts.sm }

// Run solves the problem at T0 and at every step up to Duration. x0 is the
// starting guess for the positions.
func (s *InverseSimulator) Run(ctx context.Context, x0 dynamo.State, cfg Config) (*InverseResult, error) {
	if cfg.Dt <= 0 || cfg.Duration <= 0 {
		return nil, errors.Errorf("dt and duration must be positive, got %f and %f", cfg.Dt, cfg.Duration)
	}
	n := len(s.model.Dofs())
	if len(x0) != n {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "initial state of size %d for %d dofs", len(x0), n)
	}

	ctx, span := s.opts.tracer.Start(ctx, "sim.RunInverse", trace.WithAttributes(
		attribute.Int("dofs", n),
		attribute.String("problem", s.model.ProblemType().String()),
	))
	defer span.End()

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &InverseResult{}
	x := x0.Clone()

	for i := 0; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		t := cfg.T0 + float64(i)*cfg.Dt
		s.model.SetTime(t)
		req := integrators.StepRequest{
			TStep:       cfg.Dt,
			Alpha:       1,
			Change:      dynamo.NewStep,
			X:           x.Clone(),
			XPrime:      make(dynamo.State, n),
			XPrimePrime: make(dynamo.State, n),
			Lambda:      make(dynamo.State, n),
		}
		st, err := s.integ.Advance(s, req)
		if err != nil {
			span.RecordError(err)
			level.Error(s.opts.logger).Log("msg", "inverse step failed", "step", i, "t", t, "phase", s.integ.Phase(), "err", err)
			return result, &dynamo.SimulationError{Step: i, Time: t, State: req.X, Wrapped: err}
		}

		x = req.X
		result.Times = append(result.Times, t)
		result.States = append(result.States, req.X)
		result.Velocities = append(result.Velocities, req.XPrime)
		result.Accelerations = append(result.Accelerations, req.XPrimePrime)
		result.Forces = append(result.Forces, req.Lambda)
		result.Iterations = append(result.Iterations, st.Iters)
		result.StepsTaken++
		level.Debug(s.opts.logger).Log("msg", "inverse step", "step", i, "t", t, "iters", st.Iters)
	}
	return result, nil
}
