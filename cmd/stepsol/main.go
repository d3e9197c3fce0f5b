package main

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/stepsol/internal/config"
	"github.com/san-kum/stepsol/internal/experiment"
	"github.com/san-kum/stepsol/internal/logging"
)

var (
	dataDir      string
	logLevel     string
	configFile   string
	preset       string
	live         bool
	metricsAddr  string
	sweepDts     []float64
	sweepJobs    int
	analyzeDof   int
	exportFormat string
	tuneGrid     []string
	tuneMetric   string

	// flag targets, copied onto the config when set on the command line
	flagCfg = config.DefaultConfig()
)

// main registers the commands and flags and executes the root command.
// It exits with status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "stepsol",
		Short:        "implicit step integration for DAE systems",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".stepsol", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, none)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate a model and store the run",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().BoolVar(&live, "live", false, "show live progress")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	inverseCmd := &cobra.Command{
		Use:   "inverse [model]",
		Short: "solve an inverse dynamics problem",
		Args:  cobra.ExactArgs(1),
		RunE:  runInverse,
	}
	addSimFlags(inverseCmd)
	inverseCmd.Flags().StringVar(&flagCfg.ProblemType, "problem-type", flagCfg.ProblemType, "inverse dynamics problem type")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run a model at several step sizes concurrently",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&sweepDts, "dts", []float64{0.04, 0.02, 0.01, 0.005}, "step sizes")
	sweepCmd.Flags().IntVar(&sweepJobs, "jobs", 4, "concurrent runs")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run every step of a yaml scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().IntVar(&sweepJobs, "jobs", 4, "concurrent runs")

	tuneCmd := &cobra.Command{
		Use:   "tune [model]",
		Short: "grid search solver parameters for the smallest metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runTune,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneGrid, "grid", []string{"rho=0,0.5,1"}, "parameter=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "energy_drift", "metric to minimize")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON (default) or SVG to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, svg, phase)")
	exportCmd.Flags().IntVar(&analyzeDof, "dof", 0, "dof of the phase portrait")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&analyzeDof, "dof", 0, "dof to analyze")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models and methods",
		Run: func(cmd *cobra.Command, args []string) {
			reg := experiment.NewRegistry()
			fmt.Printf("models:         %v\n", reg.ListModels())
			fmt.Printf("inverse models: %v\n", reg.ListInverseModels())
			fmt.Printf("methods:        %v\n", reg.ListMethods())
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, inverseCmd, sweepCmd, scenarioCmd, tuneCmd, listCmd, plotCmd, exportCmd, analyzeCmd, modelsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.Float64Var(&flagCfg.Dt, "dt", flagCfg.Dt, "time step")
	f.Float64Var(&flagCfg.Duration, "time", flagCfg.Duration, "duration")
	f.StringVar(&flagCfg.Method, "method", flagCfg.Method, "integration method (cn, euler, ms)")
	f.Float64Var(&flagCfg.Rho, "rho", flagCfg.Rho, "spectral radius of the multistep method")
	f.StringVar(&flagCfg.Nonlinear, "nonlinear", flagCfg.Nonlinear, "nonlinear solver (newton, nk)")
	f.IntVar(&flagCfg.MaxIters, "max-iters", flagCfg.MaxIters, "nonlinear iterations per step")
	f.Float64Var(&flagCfg.Tol, "tol", flagCfg.Tol, "residual tolerance")
	f.Float64Var(&flagCfg.SolTol, "sol-tol", flagCfg.SolTol, "solution increment tolerance (0 disables)")
	f.BoolVar(&flagCfg.ModResTest, "mod-res-test", false, "scale the residual test by the derivatives")
	f.Float64Var(&flagCfg.DivergenceCheck, "divergence-check", 0, "fail when the residual grows by this factor")
	f.Float64Var(&flagCfg.ResidualScale, "residual-scale", 0, "weight applied to every residual in the convergence test")
	f.BoolVar(&flagCfg.FDJacobian, "fd-jacobian", false, "compare the analytic jacobian with finite differences")
	f.BoolVar(&flagCfg.OutputPrediction, "output-prediction", false, "print the state after every prediction")
	f.BoolVar(&flagCfg.Derivatives.Enabled, "derivatives", false, "solve for consistent initial derivatives")
	f.Float64Var(&flagCfg.Derivatives.Coef, "deriv-coef", flagCfg.Derivatives.Coef, "initial derivative coefficient")
	f.IntVar(&flagCfg.InitState.Masses, "masses", flagCfg.InitState.Masses, "number of masses (chain models)")
	f.Float64Var(&flagCfg.InitState.Pos, "pos", flagCfg.InitState.Pos, "initial position")
	f.Float64Var(&flagCfg.InitState.Theta, "theta", 0, "initial angle (pendulum models)")
	f.Float64Var(&flagCfg.InitState.Mu, "mu", 0, "van der Pol damping")
	f.Int64Var(&flagCfg.Seed, "seed", 0, "seed recorded with the run")
}

// loadConfig layers the defaults, a preset, a config file, STEPSOL_*
// variables and finally the flags set on the command line.
func loadConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	set := map[string]func(){
		"dt":                func() { cfg.Dt = flagCfg.Dt },
		"time":              func() { cfg.Duration = flagCfg.Duration },
		"method":            func() { cfg.Method = flagCfg.Method },
		"rho":               func() { cfg.Rho = flagCfg.Rho },
		"nonlinear":         func() { cfg.Nonlinear = flagCfg.Nonlinear },
		"max-iters":         func() { cfg.MaxIters = flagCfg.MaxIters },
		"tol":               func() { cfg.Tol = flagCfg.Tol },
		"sol-tol":           func() { cfg.SolTol = flagCfg.SolTol },
		"mod-res-test":      func() { cfg.ModResTest = flagCfg.ModResTest },
		"divergence-check":  func() { cfg.DivergenceCheck = flagCfg.DivergenceCheck },
		"residual-scale":    func() { cfg.ResidualScale = flagCfg.ResidualScale },
		"fd-jacobian":       func() { cfg.FDJacobian = flagCfg.FDJacobian },
		"output-prediction": func() { cfg.OutputPrediction = flagCfg.OutputPrediction },
		"derivatives":       func() { cfg.Derivatives.Enabled = flagCfg.Derivatives.Enabled },
		"deriv-coef":        func() { cfg.Derivatives.Coef = flagCfg.Derivatives.Coef },
		"masses":            func() { cfg.InitState.Masses = flagCfg.InitState.Masses },
		"pos":               func() { cfg.InitState.Pos = flagCfg.InitState.Pos },
		"theta":             func() { cfg.InitState.Theta = flagCfg.InitState.Theta },
		"mu":                func() { cfg.InitState.Mu = flagCfg.InitState.Mu },
		"seed":              func() { cfg.Seed = flagCfg.Seed },
		"problem-type":      func() { cfg.ProblemType = flagCfg.ProblemType },
	}
	for name, apply := range set {
		if cmd.Flags().Lookup(name) != nil && changed(name) {
			apply()
		}
	}
	cfg.Model = model
	return cfg, cfg.Validate()
}

func newLogger() (log.Logger, error) {
	return logging.New(os.Stderr, logLevel)
}
