package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/stepsol/internal/sim"
)

// Summary renders the totals and metrics of a finished run.
func Summary(title string, r *sim.Result) string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(MetricLabel.Render(fmt.Sprintf("%-16s", label)))
		b.WriteString(MetricValue.Render(value))
		b.WriteByte('\n')
	}

	line("steps", fmt.Sprint(r.StepsTaken))
	line("iterations", fmt.Sprint(r.TotalIters))
	if r.InitialIters > 0 {
		line("initial iters", fmt.Sprint(r.InitialIters))
	}
	if n := len(r.Times); n > 0 {
		line("final time", num(r.Times[n-1]))
	}
	if r.EnergyDrift != 0 {
		line("energy drift", fmt.Sprintf("%.3e", r.EnergyDrift))
	}

	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		line(name, num(r.Metrics[name]))
	}
	if len(r.Iterations) > 0 {
		iters := make([]float64, len(r.Iterations))
		for i, n := range r.Iterations {
			iters[i] = float64(n)
		}
		line("iters/step", Sparkline(iters, 40))
	}

	return Panel.Render(Title.Render(title) + "\n" + strings.TrimRight(b.String(), "\n"))
}
