package analysis

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// ObservedOrder fits err ≈ C·dt^p in log-log space and returns p. Pairs
// with a zero or non-finite error are skipped; at least two must remain.
func ObservedOrder(dts, errs []float64) (float64, error) {
	if len(dts) != len(errs) {
		return 0, errors.Errorf("%d step sizes for %d errors", len(dts), len(errs))
	}
	var xs, ys []float64
	for i, e := range errs {
		if e <= 0 || math.IsNaN(e) || math.IsInf(e, 0) || dts[i] <= 0 {
			continue
		}
		xs = append(xs, math.Log(dts[i]))
		ys = append(ys, math.Log(e))
	}
	if len(xs) < 2 {
		return 0, errors.New("observed order needs two usable errors")
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope, nil
}
