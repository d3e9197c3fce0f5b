package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/stepsol/internal/analysis"
	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/export"
	"github.com/san-kum/stepsol/internal/storage"
	"github.com/san-kum/stepsol/internal/viz"
)

const maxPlots = 6

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tMETHOD\tSTEPS\tITERS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%d\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Method,
			run.Steps,
			run.TotalIters,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(tr.States) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s (%s)\n", meta.Model, meta.Method)
	fmt.Printf("samples: %d\n\n", len(tr.States))

	n := min(len(tr.States[0]), maxPlots)
	for i := 0; i < n; i++ {
		caption := fmt.Sprintf("x%d vs time", i)
		if i < len(meta.Dofs) && meta.Dofs[i] != "" {
			caption = meta.Dofs[i]
		}
		fmt.Println(viz.PlotDof(tr.States, i, caption))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	switch exportFormat {
	case "json":
		return storage.WriteJSON(os.Stdout, *meta, tr.Result(meta))
	case "svg":
		if len(tr.States) == 0 {
			return fmt.Errorf("run %s has no states", runID)
		}
		n := len(tr.States[0])
		series := make([][]float64, n)
		for i := range series {
			series[i] = column(tr.States, i)
		}
		return export.TimeSeries(os.Stdout, tr.Times, series, meta.Dofs, 800, 400)
	case "phase":
		if len(tr.States) == 0 || len(tr.States[0]) <= analyzeDof || len(tr.Derivatives) != len(tr.States) {
			return fmt.Errorf("no data for dof %d", analyzeDof)
		}
		return export.Phase(os.Stdout, column(tr.States, analyzeDof), column(tr.Derivatives, analyzeDof), 400, 400)
	}
	return fmt.Errorf("unknown format %q", exportFormat)
}

func column(states []dynamo.State, i int) []float64 {
	out := make([]float64, len(states))
	for j, s := range states {
		out[j] = s[i]
	}
	return out
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(tr.States) == 0 || len(tr.States[0]) <= analyzeDof {
		return fmt.Errorf("no data for dof %d", analyzeDof)
	}

	spectrum, err := analysis.PowerSpectrum(column(tr.States, analyzeDof), meta.Dt)
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("model: %s\n\n", meta.Model)
	fmt.Println(viz.Plot(spectrum.Power[:len(spectrum.Power)/4], fmt.Sprintf("power spectrum (x%d)", analyzeDof)))
	fmt.Println()

	freq := spectrum.Dominant()
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	return nil
}
