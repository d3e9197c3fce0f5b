// Package nonlin implements the generic nonlinear solvers that iterate on a
// dynamo.Problem: full or modified Newton-Raphson over a linear solution
// manager, and matrix-free Newton-Krylov.
package nonlin

import (
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/dynamo"
)

type options struct {
	logger          log.Logger
	scaler          dynamo.Scaler
	divergenceCheck float64
	rebuildEvery    int
}

type Option func(*options)

func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithScaler sets the per-equation scale used by the residual test.
func WithScaler(s dynamo.Scaler) Option {
	return func(o *options) { o.scaler = s }
}

// WithDivergenceCheck fails the solve with ErrDiverged once the residual
// error exceeds factor times the first error. Zero disables the check.
func WithDivergenceCheck(factor float64) Option {
	return func(o *options) { o.divergenceCheck = factor }
}

// WithJacobianRebuild reassembles the Jacobian only every n iterations
// (modified Newton). A structural change always forces a rebuild.
func WithJacobianRebuild(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.rebuildEvery = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:       log.NewNopLogger(),
		scaler:       dynamo.UniformScale(1),
		rebuildEvery: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Newton is a Newton-Raphson solver over a SolutionManager.
type Newton struct {
	sm   dynamo.SolutionManager
	opts options
}

var _ dynamo.NonlinearSolver = (*Newton)(nil)

func NewNewton(sm dynamo.SolutionManager, opts ...Option) *Newton {
	return &Newton{sm: sm, opts: newOptions(opts)}
}

func (n *Newton) Solve(p dynamo.Problem, maxIters int, tol, solTol float64) (dynamo.Stats, error) {
	var st dynamo.Stats
	res, sol := n.sm.Res(), n.sm.Sol()
	firstErr := 0.0
	sinceRebuild := 0

	for iter := 0; ; iter++ {
		res.Reset()
		err := p.Residual(res)
		structural := errors.Is(err, dynamo.ErrChangedEquationStructure)
		if err != nil && !structural {
			return st, errors.Wrap(err, "residual")
		}

		st.Err = testError(p, res, n.opts.scaler)
		level.Debug(n.opts.logger).Log("msg", "newton", "iter", iter, "err", st.Err, "structural", structural)

		if !structural && st.Err <= tol {
			return st, nil
		}
		if math.IsNaN(st.Err) || math.IsInf(st.Err, 0) {
			return st, errors.Wrapf(dynamo.ErrDiverged, "residual error %g", st.Err)
		}
		if iter == 0 {
			firstErr = st.Err
		} else if n.opts.divergenceCheck > 0 && st.Err > n.opts.divergenceCheck*firstErr {
			return st, errors.Wrapf(dynamo.ErrDiverged, "residual error %g after %d iterations", st.Err, st.Iters)
		}
		if st.Iters >= maxIters {
			return st, errors.Wrapf(dynamo.ErrNoConvergence, "residual error %g after %d iterations", st.Err, st.Iters)
		}
		st.Iters++

		if iter == 0 || structural || sinceRebuild >= n.opts.rebuildEvery-1 {
			n.sm.MatrReset()
			if err := p.Jacobian(n.sm.Matrix()); err != nil {
				return st, errors.Wrap(err, "jacobian")
			}
			sinceRebuild = 0
		} else {
			sinceRebuild++
		}

		if err := n.sm.Solve(); err != nil {
			return st, err
		}
		st.SolErr = sol.Norm()
		if err := p.Update(sol); err != nil {
			return st, errors.Wrap(err, "update")
		}
		if solTol > 0 && st.SolErr <= solTol {
			return st, nil
		}
	}
}

// testError is the scaled residual norm times the problem's test scale.
func testError(p dynamo.Problem, res dynamo.State, s dynamo.Scaler) float64 {
	var sum float64
	for i, r := range res {
		v := r * s.ScaleCoef(i)
		sum += v * v
	}
	scale, _ := p.TestScale(s)
	return math.Sqrt(sum) * scale
}
