// Package automation runs batches of simulations: scripted scenarios
// loaded from YAML and step-size sweeps of a single configuration.
package automation

import (
	"context"
	"math"
	"os"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/stepsol/internal/analysis"
	"github.com/san-kum/stepsol/internal/config"
	"github.com/san-kum/stepsol/internal/experiment"
	"github.com/san-kum/stepsol/internal/sim"
)

// Scenario is a list of runs executed together.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run. Its configuration keys sit next to save_as and
// are layered over the defaults.
type ScenarioStep struct {
	SaveAs string
	Config *config.Config
}

func (s *ScenarioStep) UnmarshalYAML(node *yaml.Node) error {
	cfg := config.DefaultConfig()
	if err := node.Decode(cfg); err != nil {
		return err
	}
	var meta struct {
		SaveAs string `yaml:"save_as"`
	}
	if err := node.Decode(&meta); err != nil {
		return err
	}
	s.SaveAs, s.Config = meta.SaveAs, cfg
	return nil
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	if len(scenario.Steps) == 0 {
		return nil, errors.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

// Runner builds and runs experiments from a registry.
type Runner struct {
	reg    *experiment.Registry
	logger log.Logger
	limit  int
}

// NewRunner runs at most limit simulations at once; limit <= 0 means no
// limit.
func NewRunner(reg *experiment.Registry, logger log.Logger, limit int) *Runner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Runner{reg: reg, logger: logger, limit: limit}
}

func (r *Runner) jobs(cfgs []*config.Config) ([]sim.Job, error) {
	jobs := make([]sim.Job, 0, len(cfgs))
	for i, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrapf(err, "run %d", i+1)
		}
		exp := experiment.New(cfg, r.reg, experiment.WithLogger(r.logger))
		if err := exp.Setup(); err != nil {
			return nil, errors.Wrapf(err, "run %d (%s)", i+1, cfg.Model)
		}
		x0, xp0 := exp.Equations().Initial()
		jobs = append(jobs, sim.Job{Sim: exp.Simulator(), X0: x0, XP0: xp0, Config: cfg.SimConfig()})
	}
	return jobs, nil
}

// RunScenario runs every step of sc. Results are in step order.
func (r *Runner) RunScenario(ctx context.Context, sc *Scenario) ([]*sim.Result, error) {
	cfgs := make([]*config.Config, len(sc.Steps))
	for i, step := range sc.Steps {
		cfgs[i] = step.Config
	}
	jobs, err := r.jobs(cfgs)
	if err != nil {
		return nil, err
	}
	return sim.NewEnsemble(r.limit).Run(ctx, jobs)
}

// SweepRow is one step size of a sweep.
type SweepRow struct {
	Dt     float64
	Result *sim.Result
	// Final is the first DOF at the end of the run.
	Final float64
	// Err is |Final - Final of the finest step|.
	Err float64
}

type Sweep struct {
	Rows []SweepRow
	// Order is the observed order of accuracy, NaN when it cannot be fit.
	Order float64
}

// StepSweep runs base once per step size and measures each run against
// the finest one.
func (r *Runner) StepSweep(ctx context.Context, base *config.Config, dts []float64) (*Sweep, error) {
	if len(dts) == 0 {
		return nil, errors.New("sweep needs at least one step size")
	}
	cfgs := make([]*config.Config, len(dts))
	for i, dt := range dts {
		cfg := *base
		cfg.Dt = dt
		cfgs[i] = &cfg
	}
	jobs, err := r.jobs(cfgs)
	if err != nil {
		return nil, err
	}
	results, err := sim.NewEnsemble(r.limit).Run(ctx, jobs)
	if err != nil {
		return nil, err
	}

	finest := 0
	for i, dt := range dts {
		if dt < dts[finest] {
			finest = i
		}
	}
	ref := final(results[finest])

	sw := &Sweep{Rows: make([]SweepRow, len(dts)), Order: math.NaN()}
	errs := make([]float64, len(dts))
	for i, res := range results {
		x := final(res)
		errs[i] = math.Abs(x - ref)
		sw.Rows[i] = SweepRow{Dt: dts[i], Result: res, Final: x, Err: errs[i]}
	}
	if p, err := analysis.ObservedOrder(dts, errs); err == nil {
		sw.Order = p
	}
	return sw, nil
}

func final(r *sim.Result) float64 {
	if r == nil || len(r.States) == 0 || len(r.States[len(r.States)-1]) == 0 {
		return math.NaN()
	}
	return r.States[len(r.States)-1][0]
}
