package nonlin

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// applyFunc writes A·v into out.
type applyFunc func(v, out dynamo.State) error

// gmres solves A·x = b by restarted GMRES with Givens rotations, starting
// from x = 0. It stops once the residual drops below rtol·‖b‖ and returns
// the number of inner iterations run.
type gmres struct {
	restart int
	maxIter int

	v    []dynamo.State
	h    [][]float64
	cs   []float64
	sn   []float64
	g    []float64
	y    []float64
	w    dynamo.State
	r    dynamo.State
	size int
}

func newGMRES(restart, maxIter int) *gmres {
	if restart < 1 {
		restart = 20
	}
	if maxIter < 1 {
		maxIter = 10 * restart
	}
	return &gmres{restart: restart, maxIter: maxIter}
}

func (g *gmres) ensureScratch(n int) {
	if g.size == n {
		return
	}
	m := g.restart
	g.v = make([]dynamo.State, m+1)
	for i := range g.v {
		g.v[i] = make(dynamo.State, n)
	}
	g.h = make([][]float64, m+1)
	for i := range g.h {
		g.h[i] = make([]float64, m)
	}
	g.cs = make([]float64, m)
	g.sn = make([]float64, m)
	g.g = make([]float64, m+1)
	g.y = make([]float64, m)
	g.w = make(dynamo.State, n)
	g.r = make(dynamo.State, n)
	g.size = n
}

func (g *gmres) solve(apply applyFunc, b, x dynamo.State, rtol float64) (int, error) {
	n := len(b)
	g.ensureScratch(n)
	x.Reset()

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return 0, nil
	}
	target := rtol * bnorm
	iters := 0

	for {
		// r = b - A·x
		copy(g.r, b)
		if iters > 0 {
			if err := apply(x, g.w); err != nil {
				return iters, err
			}
			floats.Sub(g.r, g.w)
		}
		beta := floats.Norm(g.r, 2)
		if beta <= target {
			return iters, nil
		}

		floats.ScaleTo(g.v[0], 1/beta, g.r)
		for i := range g.g {
			g.g[i] = 0
		}
		g.g[0] = beta

		k := 0
		converged := false
		for j := 0; j < g.restart; j++ {
			if err := apply(g.v[j], g.w); err != nil {
				return iters, err
			}
			for i := 0; i <= j; i++ {
				g.h[i][j] = floats.Dot(g.w, g.v[i])
				floats.AddScaled(g.w, -g.h[i][j], g.v[i])
			}
			g.h[j+1][j] = floats.Norm(g.w, 2)
			breakdown := g.h[j+1][j] <= 1e-300
			if !breakdown {
				floats.ScaleTo(g.v[j+1], 1/g.h[j+1][j], g.w)
			}

			for i := 0; i < j; i++ {
				t := g.cs[i]*g.h[i][j] + g.sn[i]*g.h[i+1][j]
				g.h[i+1][j] = -g.sn[i]*g.h[i][j] + g.cs[i]*g.h[i+1][j]
				g.h[i][j] = t
			}
			den := math.Hypot(g.h[j][j], g.h[j+1][j])
			if den == 0 {
				return iters, errors.Wrap(dynamo.ErrFactor, "gmres: singular Hessenberg matrix")
			}
			g.cs[j] = g.h[j][j] / den
			g.sn[j] = g.h[j+1][j] / den
			g.h[j][j] = den
			g.h[j+1][j] = 0
			g.g[j+1] = -g.sn[j] * g.g[j]
			g.g[j] = g.cs[j] * g.g[j]

			iters++
			k = j + 1
			if math.Abs(g.g[j+1]) <= target || breakdown {
				converged = true
				break
			}
			if iters >= g.maxIter {
				break
			}
		}

		// back substitution on the k×k upper triangle
		for i := k - 1; i >= 0; i-- {
			s := g.g[i]
			for l := i + 1; l < k; l++ {
				s -= g.h[i][l] * g.y[l]
			}
			g.y[i] = s / g.h[i][i]
		}
		for i := 0; i < k; i++ {
			floats.AddScaled(x, g.y[i], g.v[i])
		}

		if converged {
			return iters, nil
		}
		if iters >= g.maxIter {
			return iters, errors.Wrapf(dynamo.ErrNoConvergence, "gmres: %d iterations", iters)
		}
	}
}
