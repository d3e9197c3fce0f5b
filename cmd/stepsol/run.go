package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/san-kum/stepsol/internal/automation"
	"github.com/san-kum/stepsol/internal/experiment"
	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/metrics"
	"github.com/san-kum/stepsol/internal/optim"
	"github.com/san-kum/stepsol/internal/sim"
	"github.com/san-kum/stepsol/internal/storage"
	"github.com/san-kum/stepsol/internal/tui"
	"github.com/san-kum/stepsol/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	opts := []experiment.Option{experiment.WithLogger(logger)}
	if cfg.OutputPrediction {
		opts = append(opts, experiment.WithPredictionHook(func(r integrators.PredictionReport) {
			fmt.Fprintln(os.Stderr, viz.PredictionTable(r))
		}))
	}
	exp := experiment.New(cfg, experiment.NewRegistry(), opts...)
	if err := exp.Setup(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	exp.Simulator().AddObserver(metrics.NewCollector(reg))
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				level.Error(logger).Log("msg", "metrics server", "err", err)
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	var result *sim.Result
	if live {
		steps := int(math.Round(cfg.Duration / cfg.Dt))
		err = tui.Run(ctx, fmt.Sprintf("%s / %s", cfg.Model, cfg.Method), steps, func(ctx context.Context, obs sim.Observer) error {
			exp.Simulator().AddObserver(obs)
			var runErr error
			result, runErr = exp.Run(ctx)
			return runErr
		})
	} else {
		fmt.Printf("running %s with %s...\n", cfg.Model, cfg.Method)
		result, err = exp.Run(ctx)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(storage.RunMetadata{
		Model:     cfg.Model,
		Method:    cfg.Method,
		Nonlinear: cfg.Nonlinear,
		Seed:      cfg.Seed,
		Dt:        cfg.Dt,
		Duration:  cfg.Duration,
		Dofs:      dofNames(exp),
	}, result)
	if err != nil {
		return err
	}

	fmt.Println(viz.Summary(cfg.Model, result))
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func dofNames(exp *experiment.Experiment) []string {
	dofs := exp.Equations().Dofs()
	names := make([]string, len(dofs))
	for i, d := range dofs {
		names[i] = d.Description
	}
	return names
}

func runInverse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := experiment.New(cfg, experiment.NewRegistry(), experiment.WithLogger(logger)).RunInverse(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d solutions\n\n", cfg.Model, result.StepsTaken)
	for i := range result.Forces[0] {
		series := make([]float64, len(result.Forces))
		for j, f := range result.Forces {
			series[j] = f[i]
		}
		fmt.Println(viz.Plot(series, fmt.Sprintf("actuator force %d", i)))
		fmt.Println()
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	sw, err := automation.NewRunner(experiment.NewRegistry(), logger, sweepJobs).StepSweep(ctx, base, sweepDts)
	if err != nil {
		return err
	}

	fmt.Printf("sweep %s with %s (duration=%gs, %v)\n\n", base.Model, base.Method, base.Duration, time.Since(start).Round(time.Millisecond))
	fmt.Printf("%-10s  %-8s  %-10s  %-14s  %-12s\n", "dt", "steps", "iters", "final_x0", "err_vs_finest")
	fmt.Println(strings.Repeat("-", 62))
	for _, row := range sw.Rows {
		fmt.Printf("%-10g  %-8d  %-10d  %14.8f  %12.3e\n", row.Dt, row.Result.StepsTaken, row.Result.TotalIters, row.Final, row.Err)
	}
	if !math.IsNaN(sw.Order) {
		fmt.Printf("\nobserved order: %.2f\n", sw.Order)
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("scenario %s: %d runs\n", sc.Name, len(sc.Steps))
	if sc.Description != "" {
		fmt.Println(sc.Description)
	}
	results, err := automation.NewRunner(experiment.NewRegistry(), logger, sweepJobs).RunScenario(ctx, sc)
	if err != nil {
		return err
	}
	for i, step := range sc.Steps {
		cfg, res := step.Config, results[i]
		line := fmt.Sprintf("  %-18s %-6s steps=%-6d iters=%-7d final_x0=%.8f", cfg.Model, cfg.Method, res.StepsTaken, res.TotalIters, final(res))
		if step.SaveAs != "" {
			id, err := st.Save(storage.RunMetadata{
				Model:     cfg.Model,
				Method:    cfg.Method,
				Nonlinear: cfg.Nonlinear,
				Seed:      cfg.Seed,
				Dt:        cfg.Dt,
				Duration:  cfg.Duration,
			}, res)
			if err != nil {
				return err
			}
			line += fmt.Sprintf("  %s -> %s", step.SaveAs, id)
		}
		fmt.Println(line)
	}
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	params := make([]optim.Param, 0, len(tuneGrid))
	for _, entry := range tuneGrid {
		name, values, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("grid %q: want name=v1,v2,...", entry)
		}
		p := optim.Param{Name: strings.TrimSpace(name)}
		for _, field := range strings.Split(values, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return fmt.Errorf("grid %s: %w", p.Name, err)
			}
			p.Values = append(p.Values, v)
		}
		params = append(params, p)
	}

	g, err := optim.NewGridSearch(experiment.NewRegistry(), logger, params...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := g.Search(ctx, base, tuneMetric)
	if err != nil {
		return err
	}
	fmt.Printf("best %s = %.6g (%d points, %d failed)\n", tuneMetric, out.Value, out.Evaluated, out.Failed)
	for _, p := range params {
		fmt.Printf("  %-10s %g\n", p.Name, out.Params[p.Name])
	}
	return nil
}

func final(r *sim.Result) float64 {
	if r == nil || len(r.States) == 0 || len(r.States[len(r.States)-1]) == 0 {
		return math.NaN()
	}
	return r.States[len(r.States)-1][0]
}
