package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/stepsol/internal/dynamo"
)

const (
	plotHeight = 10
	plotWidth  = 80
)

// Plot draws one series with a caption.
func Plot(data []float64, caption string) string {
	if len(data) == 0 {
		return Subtle.Render("(no data)")
	}
	return asciigraph.Plot(data,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
	)
}

// PlotDof draws the trajectory of DOF idx over the stored states.
func PlotDof(states []dynamo.State, idx int, caption string) string {
	data := make([]float64, 0, len(states))
	for _, s := range states {
		if idx < len(s) {
			data = append(data, s[idx])
		}
	}
	return Plot(data, caption)
}

// PlotConvergence draws the per-step iteration counts and the base-10
// logarithm of the converged residual errors.
func PlotConvergence(iters []int, residuals []float64) string {
	if len(iters) == 0 {
		return Subtle.Render("(no steps)")
	}
	it := make([]float64, len(iters))
	for i, n := range iters {
		it[i] = float64(n)
	}
	logRes := make([]float64, 0, len(residuals))
	for _, r := range residuals {
		if r > 0 {
			logRes = append(logRes, math.Log10(r))
		}
	}
	out := asciigraph.Plot(it,
		asciigraph.Height(plotHeight/2),
		asciigraph.Width(plotWidth),
		asciigraph.Caption("iterations per step"),
	)
	if len(logRes) > 0 {
		out += "\n\n" + asciigraph.Plot(logRes,
			asciigraph.Height(plotHeight/2),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(fmt.Sprintf("log10 residual (%d steps)", len(logRes))),
		)
	}
	return out
}
