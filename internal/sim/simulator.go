package sim

import (
	"context"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/linsolve"
	"github.com/san-kum/stepsol/internal/nonlin"
)

const tracerName = "github.com/san-kum/stepsol/internal/sim"

type options struct {
	logger  log.Logger
	tracer  trace.Tracer
	starter Forward
	derivs  *integrators.DerivativeSolver
	nl      dynamo.NonlinearSolver
	sm      dynamo.SolutionManager
}

type Option func(*options)

func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithStarter sets the one-step integrator used while the history is
// shorter than the main integrator needs.
func WithStarter(f Forward) Option {
	return func(o *options) { o.starter = f }
}

// WithDerivatives sets the solver used for the initial derivatives.
func WithDerivatives(ds *integrators.DerivativeSolver) Option {
	return func(o *options) { o.derivs = ds }
}

// WithSolvers replaces the default dense LU and Newton pair.
func WithSolvers(nl dynamo.NonlinearSolver, sm dynamo.SolutionManager) Option {
	return func(o *options) { o.nl, o.sm = nl, sm }
}

func newOptions(n int, opts []Option) options {
	o := options{
		logger: log.NewNopLogger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sm == nil {
		o.sm = linsolve.New(n)
	}
	if o.nl == nil {
		o.nl = nonlin.NewNewton(o.sm, nonlin.WithLogger(o.logger))
	}
	return o
}

// Simulator runs a forward simulation. It is the integrators' Driver.
type Simulator struct {
	model     Model
	integ     Forward
	opts      options
	metrics   []Metric
	observers []Observer
}

var _ integrators.Driver = (*Simulator)(nil)

func New(model Model, integ Forward, opts ...Option) *Simulator {
	s := &Simulator{
		model:     model,
		integ:     integ,
		opts:      newOptions(len(model.Dofs()), opts),
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
	integ.SetDataManager(model)
	if s.opts.starter == nil && integ.NumPreviousStates() > 1 {
		if st, ok := integ.(interface{ Starter() *integrators.Step1Integrator }); ok {
			s.opts.starter = st.Starter()
		} else {
			s.opts.starter = integrators.NewStep1(integrators.NewCrankNicolson(), integrators.Params{
				MaxIters: integ.MaxIters(),
				Tol:      integ.Tol(),
				SolTol:   integ.SolTol(),
			}, integrators.WithLogger(s.opts.logger))
		}
	}
	if s.opts.starter != nil {
		s.opts.starter.SetDataManager(model)
	}
	if s.opts.derivs != nil {
		s.opts.derivs.SetDataManager(model)
	}
	return s
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) NonlinearSolver() dynamo.NonlinearSolver { return s.opts.nl }
func (s *Simulator) SolutionManager() dynamo.SolutionManager { return s.opts.sm }

func (s *Simulator) Run(ctx context.Context, x0, xp0 dynamo.State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	n := len(s.model.Dofs())
	if len(x0) != n || len(xp0) != n {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "initial state of size %d/%d for %d dofs", len(x0), len(xp0), n)
	}

	ctx, span := s.opts.tracer.Start(ctx, "sim.Run", trace.WithAttributes(
		attribute.Int("dofs", n),
		attribute.Float64("dt", cfg.Dt),
		attribute.Float64("duration", cfg.Duration),
	))
	defer span.End()

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		Times:       make([]float64, 0, steps+1),
		States:      make([]dynamo.State, 0, steps+1),
		Derivatives: make([]dynamo.State, 0, steps+1),
		Iterations:  make([]int, 0, steps),
		Residuals:   make([]float64, 0, steps),
		Metrics:     make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	x, xp := x0.Clone(), xp0.Clone()
	t := cfg.T0
	s.model.SetTime(t)

	if cfg.Derivatives && s.opts.derivs != nil {
		st, err := s.opts.derivs.Advance(s, integrators.StepRequest{TStep: cfg.Dt, X: x, XPrime: xp})
		if err != nil {
			s.fail(span, 0, t, err)
			return result, &dynamo.SimulationError{Step: 0, Time: t, State: x.Clone(), Wrapped: errors.Wrap(err, "initial derivatives")}
		}
		result.InitialIters = st.Iters
		level.Info(s.opts.logger).Log("msg", "initial derivatives", "t", t, "iters", st.Iters, "err", st.Err)
	}

	depth := s.integ.NumPreviousStates()
	if depth < 1 {
		depth = 1
	}
	history := dynamo.NewHistory(depth)
	history.Push(x, xp)
	result.Times = append(result.Times, t)
	result.States = append(result.States, x.Clone())
	result.Derivatives = append(result.Derivatives, xp.Clone())

	s.model.LinkToSolution(x, xp)
	initialEnergy := s.energy()

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		t = cfg.T0 + float64(i)*cfg.Dt
		s.model.SetTime(t)
		xn, xpn := history.Latest()

		integ := s.integ
		if history.Len() < s.integ.NumPreviousStates() {
			integ = s.opts.starter
		}

		_, stepSpan := s.opts.tracer.Start(ctx, "sim.Step", trace.WithAttributes(
			attribute.Int("step", i),
			attribute.Float64("t", t),
		))
		st, err := integ.Advance(s, integrators.StepRequest{
			TStep:   cfg.Dt,
			Alpha:   1,
			Change:  dynamo.NewStep,
			History: history,
			X:       xn,
			XPrime:  xpn,
		})
		if err == nil && cfg.ValidateState && (!xn.IsValid() || !xpn.IsValid()) {
			err = errors.Wrapf(dynamo.ErrInvalidState, "step %d", i)
		}
		if err != nil {
			s.fail(stepSpan, i, t, err)
			stepSpan.End()
			return result, &dynamo.SimulationError{Step: i, Time: t, State: xn, Wrapped: err}
		}
		stepSpan.SetAttributes(attribute.Int("iters", st.Iters), attribute.Float64("err", st.Err))
		stepSpan.End()

		history.Push(xn, xpn)
		result.StepsTaken++
		result.TotalIters += st.Iters
		result.Times = append(result.Times, t)
		result.States = append(result.States, xn.Clone())
		result.Derivatives = append(result.Derivatives, xpn.Clone())
		result.Iterations = append(result.Iterations, st.Iters)
		result.Residuals = append(result.Residuals, st.Err)

		info := StepInfo{Step: i, Time: t, X: xn, XPrime: xpn, Stats: st}
		for _, m := range s.metrics {
			m.Observe(info)
		}
		for _, obs := range s.observers {
			obs.OnStep(info)
		}
		level.Debug(s.opts.logger).Log("msg", "step", "step", i, "t", t, "iters", st.Iters, "err", st.Err)
	}

	if last := len(result.States) - 1; last >= 0 {
		s.model.LinkToSolution(result.States[last], result.Derivatives[last])
		if final := s.energy(); initialEnergy != 0 && !math.IsNaN(initialEnergy) {
			result.EnergyDrift = math.Abs(final-initialEnergy) / math.Abs(initialEnergy)
		}
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func (s *Simulator) fail(span trace.Span, step int, t float64, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	level.Error(s.opts.logger).Log("msg", "step failed", "step", step, "t", t, "kind", dynamo.KindOf(err), "err", err)
	for _, obs := range s.observers {
		if fo, ok := obs.(FailureObserver); ok {
			fo.OnFailure(step, t, err)
		}
	}
}

func (s *Simulator) energy() float64 {
	if ec, ok := s.model.(EnergyComputer); ok {
		return ec.Energy()
	}
	return math.NaN()
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return errors.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return errors.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if s.integ.NumPreviousStates() > 1 && s.opts.starter == nil {
		return errors.New("multistep integrator without a starter")
	}
	return nil
}
