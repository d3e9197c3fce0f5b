// Package linsolve provides the linear-system backend used by the nonlinear
// solvers and by the inverse dynamics phases.
package linsolve

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// Dense is a dense LU solution manager for J*sol = res.
//
// The factorization is computed lazily on the first Solve after the matrix
// has been handed out or reset, and is reused by later Solve and SolveT
// calls until then.
type Dense struct {
	n        int
	a        *mat.Dense
	res      dynamo.State
	sol      dynamo.State
	lu       mat.LU
	factored bool
}

func New(n int) *Dense {
	if n < 1 {
		panic("linsolve: system size must be positive")
	}
	return &Dense{
		n:   n,
		a:   mat.NewDense(n, n, nil),
		res: make(dynamo.State, n),
		sol: make(dynamo.State, n),
	}
}

func (d *Dense) Size() int { return d.n }

// Matrix returns the system matrix for assembly. The cached factorization
// is dropped because the caller is about to write into it.
func (d *Dense) Matrix() *mat.Dense {
	d.factored = false
	return d.a
}

func (d *Dense) Res() dynamo.State { return d.res }
func (d *Dense) Sol() dynamo.State { return d.sol }

// MatrReset zeroes the matrix and drops the factorization.
func (d *Dense) MatrReset() {
	d.a.Zero()
	d.factored = false
}

func (d *Dense) factor() error {
	if d.factored {
		return nil
	}
	d.lu.Factorize(d.a)
	cond := d.lu.Cond()
	if math.IsInf(cond, 1) || math.IsNaN(cond) || 1/cond < epsilon {
		return errors.Wrapf(dynamo.ErrFactor, "condition number %g", cond)
	}
	d.factored = true
	return nil
}

func (d *Dense) Solve() error  { return d.solve(false) }
func (d *Dense) SolveT() error { return d.solve(true) }

func (d *Dense) solve(trans bool) error {
	if err := d.factor(); err != nil {
		return err
	}
	dst := mat.NewVecDense(d.n, d.sol)
	b := mat.NewVecDense(d.n, d.res.Clone())
	if err := d.lu.SolveVecTo(dst, trans, b); err != nil {
		var c mat.Condition
		if !errors.As(err, &c) {
			return errors.Wrap(dynamo.ErrFactor, err.Error())
		}
	}
	return nil
}

const epsilon = 2.220446049250313e-16
