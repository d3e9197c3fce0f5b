package nonlin

import (
	"math"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// KrylovParams configures the inner linear solve of NewtonKrylov.
type KrylovParams struct {
	// Eta is the relative tolerance of the inner GMRES solve.
	Eta float64
	// Tau is the perturbation passed to Problem.EvalProd.
	Tau     float64
	Restart int
	MaxIter int
}

func DefaultKrylovParams() KrylovParams {
	return KrylovParams{Eta: 1e-6, Tau: 1e-7, Restart: 20, MaxIter: 200}
}

// NewtonKrylov is an inexact Newton solver whose linear steps are solved
// by GMRES on the matrix-free product Problem.EvalProd. It never assembles
// a Jacobian.
type NewtonKrylov struct {
	params KrylovParams
	opts   options
	inner  *gmres
	res    dynamo.State
	sol    dynamo.State
}

var _ dynamo.NonlinearSolver = (*NewtonKrylov)(nil)

func NewNewtonKrylov(n int, p KrylovParams, opts ...Option) *NewtonKrylov {
	d := DefaultKrylovParams()
	if p.Eta <= 0 {
		p.Eta = d.Eta
	}
	if p.Tau <= 0 {
		p.Tau = d.Tau
	}
	return &NewtonKrylov{
		params: p,
		opts:   newOptions(opts),
		inner:  newGMRES(p.Restart, p.MaxIter),
		res:    make(dynamo.State, n),
		sol:    make(dynamo.State, n),
	}
}

func (k *NewtonKrylov) Solve(p dynamo.Problem, maxIters int, tol, solTol float64) (dynamo.Stats, error) {
	var st dynamo.Stats
	firstErr := 0.0
	apply := func(v, out dynamo.State) error {
		return p.EvalProd(k.params.Tau, k.res, v, out)
	}

	for iter := 0; ; iter++ {
		k.res.Reset()
		err := p.Residual(k.res)
		structural := errors.Is(err, dynamo.ErrChangedEquationStructure)
		if err != nil && !structural {
			return st, errors.Wrap(err, "residual")
		}

		st.Err = testError(p, k.res, k.opts.scaler)
		if !structural && st.Err <= tol {
			return st, nil
		}
		if math.IsNaN(st.Err) || math.IsInf(st.Err, 0) {
			return st, errors.Wrapf(dynamo.ErrDiverged, "residual error %g", st.Err)
		}
		if iter == 0 {
			firstErr = st.Err
		} else if k.opts.divergenceCheck > 0 && st.Err > k.opts.divergenceCheck*firstErr {
			return st, errors.Wrapf(dynamo.ErrDiverged, "residual error %g after %d iterations", st.Err, st.Iters)
		}
		if st.Iters >= maxIters {
			return st, errors.Wrapf(dynamo.ErrNoConvergence, "residual error %g after %d iterations", st.Err, st.Iters)
		}
		st.Iters++

		inner, err := k.inner.solve(apply, k.res, k.sol, k.params.Eta)
		level.Debug(k.opts.logger).Log("msg", "newton-krylov", "iter", iter, "err", st.Err, "gmres", inner)
		if err != nil {
			return st, err
		}
		st.SolErr = k.sol.Norm()
		if err := p.Update(k.sol); err != nil {
			return st, errors.Wrap(err, "update")
		}
		if solTol > 0 && st.SolErr <= solTol {
			return st, nil
		}
	}
}
