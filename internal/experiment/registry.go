package experiment

import (
	"sort"

	"github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/config"
	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/linsolve"
	"github.com/san-kum/stepsol/internal/metrics"
	"github.com/san-kum/stepsol/internal/models"
	"github.com/san-kum/stepsol/internal/nonlin"
	"github.com/san-kum/stepsol/internal/sim"
)

// ErrUnknown is returned for names the registry does not hold.
var ErrUnknown = errors.New("experiment: unknown name")

type (
	modelFactory     func(cfg *config.Config) models.Equations
	inverseFactory   func(cfg *config.Config) models.InverseEquations
	methodFactory    func(cfg *config.Config, opts []integrators.Option) sim.Forward
	nonlinearFactory func(cfg *config.Config, n int, logger log.Logger) (dynamo.NonlinearSolver, dynamo.SolutionManager)
)

type Registry struct {
	models    map[string]modelFactory
	inverse   map[string]inverseFactory
	methods   map[string]methodFactory
	nonlinear map[string]nonlinearFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		models:    make(map[string]modelFactory),
		inverse:   make(map[string]inverseFactory),
		methods:   make(map[string]methodFactory),
		nonlinear: make(map[string]nonlinearFactory),
	}

	r.models["spring_mass"] = func(cfg *config.Config) models.Equations {
		eq := models.NewSpringMass()
		eq.X0 = cfg.InitState.Pos
		return eq
	}
	r.models["chain"] = func(cfg *config.Config) models.Equations {
		n := cfg.InitState.Masses
		if n < 1 {
			n = 3
		}
		eq := models.NewSpringMassChain(n)
		eq.X0 = cfg.InitState.Pos
		return eq
	}
	r.models["constrained_mass"] = func(*config.Config) models.Equations { return models.NewConstrainedMass() }
	r.models["pendulum"] = func(cfg *config.Config) models.Equations {
		p := models.NewPendulum()
		if cfg.InitState.Theta != 0 {
			p.Theta0 = cfg.InitState.Theta
		}
		return p
	}
	r.models["double_pendulum"] = func(cfg *config.Config) models.Equations {
		dp := models.NewDoublePendulum()
		if th := cfg.InitState.Theta; th != 0 {
			dp.Theta0 = [2]float64{th, th}
		}
		return models.FromODE(dp)
	}

	r.models["van_der_pol"] = func(cfg *config.Config) models.Equations {
		v := models.NewVanDerPol()
		if cfg.InitState.Mu > 0 {
			v.Mu = cfg.InitState.Mu
		}
		if cfg.InitState.Pos != 0 {
			v.X0 = cfg.InitState.Pos
		}
		return v
	}
	r.models["duffing"] = func(cfg *config.Config) models.Equations {
		d := models.NewDuffing()
		if cfg.InitState.Pos != 0 {
			d.X0 = cfg.InitState.Pos
		}
		return models.FromODE(d)
	}

	r.inverse["prescribed_chain"] = func(cfg *config.Config) models.InverseEquations {
		n := cfg.InitState.Masses
		if n < 1 {
			n = 3
		}
		return models.NewPrescribedChain(n)
	}

	r.methods["cn"] = func(cfg *config.Config, opts []integrators.Option) sim.Forward {
		return integrators.NewStep1(integrators.NewCrankNicolson(), cfg.IntegratorParams(), opts...)
	}
	r.methods["euler"] = func(cfg *config.Config, opts []integrators.Option) sim.Forward {
		return integrators.NewStep1(integrators.NewImplicitEuler(), cfg.IntegratorParams(), opts...)
	}
	r.methods["ms"] = func(cfg *config.Config, opts []integrators.Option) sim.Forward {
		return integrators.NewStep2(integrators.NewMultistep(cfg.Rho), cfg.IntegratorParams(), opts...)
	}

	r.nonlinear["newton"] = func(cfg *config.Config, n int, logger log.Logger) (dynamo.NonlinearSolver, dynamo.SolutionManager) {
		sm := linsolve.New(n)
		return nonlin.NewNewton(sm, nonlinOptions(cfg, logger)...), sm
	}
	r.nonlinear["nk"] = func(cfg *config.Config, n int, logger log.Logger) (dynamo.NonlinearSolver, dynamo.SolutionManager) {
		p := nonlin.DefaultKrylovParams()
		if cfg.Tau > 0 {
			p.Tau = cfg.Tau
		}
		// the derivative solver still needs a matrix to reset on factorization failures
		return nonlin.NewNewtonKrylov(n, p, nonlinOptions(cfg, logger)...), linsolve.New(n)
	}

	return r
}

// nonlinOptions maps the shared solver settings. A zero residual scale
// keeps the solver default of one.
func nonlinOptions(cfg *config.Config, logger log.Logger) []nonlin.Option {
	opts := []nonlin.Option{
		nonlin.WithLogger(logger),
		nonlin.WithDivergenceCheck(cfg.DivergenceCheck),
	}
	if cfg.ResidualScale > 0 {
		opts = append(opts, nonlin.WithScaler(dynamo.UniformScale(cfg.ResidualScale)))
	}
	return opts
}

func (r *Registry) GetModel(cfg *config.Config) (models.Equations, error) {
	fn, ok := r.models[cfg.Model]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "model %q", cfg.Model)
	}
	return fn(cfg), nil
}

func (r *Registry) GetInverseModel(cfg *config.Config) (models.InverseEquations, error) {
	fn, ok := r.inverse[cfg.Model]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "inverse model %q", cfg.Model)
	}
	eq := fn(cfg)
	if cfg.ProblemType != "" {
		want, err := integrators.ParseProblemType(cfg.ProblemType)
		if err != nil {
			return nil, err
		}
		if want != eq.ProblemType() {
			return nil, errors.Errorf("inverse model %q is %v, not %v", cfg.Model, eq.ProblemType(), want)
		}
	}
	return eq, nil
}

func (r *Registry) GetMethod(cfg *config.Config, opts ...integrators.Option) (sim.Forward, error) {
	fn, ok := r.methods[cfg.Method]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "method %q", cfg.Method)
	}
	return fn(cfg, opts), nil
}

func (r *Registry) GetNonlinear(cfg *config.Config, n int, logger log.Logger) (dynamo.NonlinearSolver, dynamo.SolutionManager, error) {
	name := cfg.Nonlinear
	if name == "" {
		name = "newton"
	}
	fn, ok := r.nonlinear[name]
	if !ok {
		return nil, nil, errors.Wrapf(ErrUnknown, "nonlinear solver %q", name)
	}
	nl, sm := fn(cfg, n, logger)
	return nl, sm, nil
}

func (r *Registry) ListModels() []string        { return sortedKeys(r.models) }
func (r *Registry) ListInverseModels() []string { return sortedKeys(r.inverse) }
func (r *Registry) ListMethods() []string       { return sortedKeys(r.methods) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics are the per-step metrics recorded for eq.
func (r *Registry) DefaultMetrics(eq models.Equations) []sim.Metric {
	ms := []sim.Metric{
		metrics.NewIterations(),
		metrics.NewMaxResidual(),
		metrics.NewStability(1e3),
	}
	if en, ok := eq.(models.Energetic); ok {
		ms = append(ms, metrics.NewEnergyDrift(en.Energy))
	}
	return ms
}
