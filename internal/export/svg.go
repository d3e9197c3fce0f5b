// Package export renders stored trajectories as standalone SVG plots.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

var palette = []string{"#00d7ff", "#ff5f87", "#afff00", "#ffaf00", "#af87ff", "#5fd7af"}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func newBounds(xs []float64, ys [][]float64) bounds {
	b := bounds{minX: floats.Min(xs), maxX: floats.Max(xs), minY: floats.Min(ys[0]), maxY: floats.Max(ys[0])}
	for _, y := range ys[1:] {
		if m := floats.Min(y); m < b.minY {
			b.minY = m
		}
		if m := floats.Max(y); m > b.maxY {
			b.maxY = m
		}
	}
	pad := func(lo, hi float64) (float64, float64) {
		r := hi - lo
		if r == 0 {
			r = 1
		}
		return lo - 0.05*r, hi + 0.05*r
	}
	b.minX, b.maxX = pad(b.minX, b.maxX)
	b.minY, b.maxY = pad(b.minY, b.maxY)
	return b
}

func (b bounds) point(x, y float64, width, height int) (float64, float64) {
	px := (x - b.minX) / (b.maxX - b.minX) * float64(width)
	py := float64(height) - (y-b.minY)/(b.maxY-b.minY)*float64(height)
	return px, py
}

func path(sb *strings.Builder, b bounds, xs, ys []float64, width, height int, color string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, color)
	for i := range xs {
		x, y := b.point(xs[i], ys[i], width, height)
		if i == 0 {
			fmt.Fprintf(sb, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

// TimeSeries plots each series against times, one colour per series, with
// a legend of names in the top left corner.
func TimeSeries(w io.Writer, times []float64, series [][]float64, names []string, width, height int) error {
	if len(times) < 2 {
		return errors.New("need at least two samples")
	}
	if len(series) == 0 {
		return errors.New("no series to plot")
	}
	for i, s := range series {
		if len(s) != len(times) {
			return errors.Errorf("series %d has %d samples, want %d", i, len(s), len(times))
		}
	}

	b := newBounds(times, series)
	var sb strings.Builder
	header(&sb, width, height)
	for i, s := range series {
		path(&sb, b, times, s, width, height, palette[i%len(palette)])
	}
	for i, name := range names {
		if i >= len(series) {
			break
		}
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*i, palette[i%len(palette)], escape(name))
	}
	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// Phase plots a phase portrait of one dof.
func Phase(w io.Writer, x, xp []float64, width, height int) error {
	if len(x) < 2 || len(x) != len(xp) {
		return errors.Errorf("phase portrait needs matching series of two or more samples, got %d and %d", len(x), len(xp))
	}
	b := newBounds(x, [][]float64{xp})
	var sb strings.Builder
	header(&sb, width, height)
	path(&sb, b, x, xp, width, height, palette[0])
	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
