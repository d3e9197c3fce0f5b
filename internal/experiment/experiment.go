// Package experiment assembles a simulation from a run configuration:
// the model, the integration method, the nonlinear solver and the default
// metrics, all looked up by name in a Registry.
package experiment

import (
	"context"

	"github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/config"
	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/models"
	"github.com/san-kum/stepsol/internal/sim"
)

type Experiment struct {
	cfg     *config.Config
	reg     *Registry
	logger  log.Logger
	eq      models.Equations
	manager *models.Manager
	integ   sim.Forward
	sim     *sim.Simulator
	predict func(integrators.PredictionReport)
}

type Option func(*Experiment)

func WithLogger(l log.Logger) Option {
	return func(e *Experiment) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPredictionHook receives the prediction report of every step when
// output_prediction is set.
func WithPredictionHook(fn func(integrators.PredictionReport)) Option {
	return func(e *Experiment) { e.predict = fn }
}

func New(cfg *config.Config, reg *Registry, opts ...Option) *Experiment {
	e := &Experiment{cfg: cfg, reg: reg, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Setup builds the simulator. Extra sim options are applied after the
// configured solvers.
func (e *Experiment) Setup(opts ...sim.Option) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	eq, err := e.reg.GetModel(e.cfg)
	if err != nil {
		return err
	}
	iopts := []integrators.Option{integrators.WithLogger(e.logger)}
	if e.predict != nil {
		iopts = append(iopts, integrators.WithPredictionHook(e.predict))
	}
	integ, err := e.reg.GetMethod(e.cfg, iopts...)
	if err != nil {
		return err
	}
	if e.cfg.OutputPrediction {
		if ot, ok := integ.(interface{ OutputTypes(bool) }); ok {
			ot.OutputTypes(true)
		}
	}

	n := len(eq.Dofs())
	nl, sm, err := e.reg.GetNonlinear(e.cfg, n, e.logger)
	if err != nil {
		return err
	}

	manager := models.NewManager(eq)
	manager.SetFDJac(e.cfg.FDJacobian)

	simOpts := []sim.Option{sim.WithLogger(e.logger), sim.WithSolvers(nl, sm)}
	if e.cfg.Derivatives.Enabled {
		simOpts = append(simOpts, sim.WithDerivatives(
			integrators.NewDerivativeSolver(e.cfg.DerivativeParams(), integrators.WithLogger(e.logger)),
		))
	}
	s := sim.New(manager, integ, append(simOpts, opts...)...)
	for _, m := range e.reg.DefaultMetrics(eq) {
		s.AddMetric(m)
	}

	e.eq, e.manager, e.integ, e.sim = eq, manager, integ, s
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.sim == nil {
		return nil, errors.New("experiment not set up")
	}
	x0, xp0 := e.eq.Initial()
	return e.sim.Run(ctx, x0, xp0, e.cfg.SimConfig())
}

// RunInverse solves the configured inverse dynamics problem.
func (e *Experiment) RunInverse(ctx context.Context, opts ...sim.Option) (*sim.InverseResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	eq, err := e.reg.GetInverseModel(e.cfg)
	if err != nil {
		return nil, err
	}
	s := sim.NewInverse(
		models.NewInverseManager(eq),
		integrators.NewInverseDynamics(e.cfg.IntegratorParams(), integrators.WithLogger(e.logger)),
		append([]sim.Option{sim.WithLogger(e.logger)}, opts...)...,
	)
	return s.Run(ctx, eq.Initial(), e.cfg.SimConfig())
}

// Simulator returns the simulator built by Setup, for adding observers.
func (e *Experiment) Simulator() *sim.Simulator { return e.sim }

func (e *Experiment) Equations() models.Equations { return e.eq }
func (e *Experiment) Manager() *models.Manager    { return e.manager }
func (e *Experiment) Integrator() sim.Forward     { return e.integ }
