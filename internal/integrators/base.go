package integrators

import (
	"github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/dynamo"
)

// base stores the configuration common to every integrator. It has no
// behavior beyond the accessors.
type base struct {
	maxIters   int
	tol        float64
	solTol     float64
	steps      int
	unkstates  int
	dofs       []dynamo.Dof
	logger     log.Logger
	outputPred bool
	onPredict  func(PredictionReport)
}

func newBase(p Params, steps, unkstates int, opts []Option) base {
	b := base{
		maxIters:  p.MaxIters,
		tol:       p.Tol,
		solTol:    p.SolTol,
		steps:     steps,
		unkstates: unkstates,
		logger:    log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) NumPreviousStates() int { return b.steps }
func (b *base) NumUnknownStates() int  { return b.unkstates }
func (b *base) MaxIters() int          { return b.maxIters }
func (b *base) Tol() float64           { return b.tol }
func (b *base) SolTol() float64        { return b.solTol }

// OutputTypes enables the prediction report.
func (b *base) OutputTypes(pred bool) { b.outputPred = pred }

func (b *base) checkBuffers(bufs ...dynamo.State) error {
	n := len(b.dofs)
	for _, s := range bufs {
		if len(s) != n {
			return errors.Wrapf(dynamo.ErrDimensionMismatch, "buffer of size %d for %d dofs", len(s), n)
		}
	}
	return nil
}

func (b *base) checkHistory(h *dynamo.History) error {
	if h == nil || h.Len() < b.steps {
		have := 0
		if h != nil {
			have = h.Len()
		}
		return errors.Wrapf(dynamo.ErrHistoryTooShort, "have %d, need %d", have, b.steps)
	}
	for i := 0; i < b.steps; i++ {
		if err := b.checkBuffers(h.X(i), h.XPrime(i)); err != nil {
			return errors.Wrapf(err, "history entry %d", i)
		}
	}
	return nil
}

func errNoDataManager() error {
	return errors.Wrap(dynamo.ErrUnbound, "data manager not set")
}
