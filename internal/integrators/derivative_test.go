package integrators_test

import (
	"math"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/linsolve"
	"github.com/san-kum/stepsol/internal/models"
)

var _ = Describe("DerivativeSolver", func() {
	var (
		eq  *models.SpringMass
		dm  *models.Manager
		x0  dynamo.State
		xp0 dynamo.State
		req integrators.StepRequest
	)

	newSolver := func(maxIterCoef int) *integrators.DerivativeSolver {
		ds := integrators.NewDerivativeSolver(integrators.DerivativeParams{
			Params:      integrators.Params{MaxIters: 10, Tol: 1e-10},
			Coef:        1e-3,
			MaxIterCoef: maxIterCoef,
			FactorCoef:  10,
		})
		ds.SetDataManager(dm)
		return ds
	}

	BeforeEach(func() {
		eq = models.NewSpringMass()
		dm = models.NewManager(eq)
		x0 = dynamo.State{1, 0}
		xp0 = dynamo.State{0, 0}
		req = integrators.StepRequest{TStep: 1e-3, X: x0.Clone(), XPrime: xp0.Clone()}
	})

	It("computes consistent derivatives with a real Newton solve", func() {
		ds := newSolver(2)
		_, err := ds.Advance(newtonDriver(2), req)
		Expect(err).NotTo(HaveOccurred())

		_, want := eq.Initial()
		Expect(req.XPrime[1]).To(BeNumerically("~", want[1], 1e-2))
		Expect(req.X[0]).To(BeNumerically("~", 1, 1e-4))
		Expect(dm.Hooks().AfterConvergence).To(Equal(1))

		x, xp := dm.Linked()
		Expect(&x[0]).To(BeIdenticalTo(&req.X[0]))
		Expect(&xp[0]).To(BeIdenticalTo(&req.XPrime[0]))
	})

	Context("when no coefficient converges", func() {
		// err(coef) is smallest at 1e-5 and never below the tolerance
		errFor := func(coef float64) float64 { return math.Abs(math.Log10(coef/1e-5)) + 0.5 }

		var (
			coefs    []float64
			tols     []float64
			residual []dynamo.State
			nl       *probe
		)

		BeforeEach(func() {
			coefs, tols, residual = nil, nil, nil
			nl = &probe{fn: func(p dynamo.Problem, _ int, tol, _ float64) (dynamo.Stats, error) {
				_, coef := p.TestScale(nil)
				coefs = append(coefs, coef)
				tols = append(tols, tol)

				res := make(dynamo.State, 2)
				Expect(p.Residual(res)).To(Succeed())
				residual = append(residual, res)
				Expect(p.Update(dynamo.State{1, 1})).To(Succeed())

				st := dynamo.Stats{Iters: 3, Err: errFor(coef), SolErr: 2 * errFor(coef)}
				if st.Err <= tol {
					return st, nil
				}
				return st, errors.Wrap(dynamo.ErrNoConvergence, "scripted")
			}}
		})

		It("walks the schedule and forces acceptance on the last attempt", func() {
			ds := newSolver(3)
			Expect(ds.MaxAttempts()).To(Equal(7))

			_, err := ds.Advance(&driver{nl: nl, sm: linsolve.New(2)}, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(nl.calls).To(Equal(7))

			want := []float64{1e-3, 1e-2, 1e-1, 1, 1e-4, 1e-5, 1e-5}
			Expect(coefs).To(HaveLen(len(want)))
			for i := range want {
				Expect(coefs[i]).To(BeNumerically("~", want[i], want[i]*1e-9))
			}
			Expect(tols[6]).To(BeNumerically("~", 1.01*0.5, 1e-9))
			for _, r := range residual[1:] {
				Expect(r).To(Equal(residual[0]))
			}
			Expect(dm.Hooks().DerivativesUpdate).To(BeNumerically(">=", 6))
		})

		It("makes a single attempt when the search is disabled", func() {
			ds := newSolver(0)
			_, err := ds.Advance(&driver{nl: nl, sm: linsolve.New(2)}, req)
			Expect(err).To(MatchError(dynamo.ErrNoConvergence))
			Expect(nl.calls).To(Equal(1))
			Expect(req.X).To(Equal(x0))
			Expect(req.XPrime).To(Equal(xp0))

			x, _ := dm.Linked()
			Expect(&x[0]).To(BeIdenticalTo(&req.X[0]))
		})
	})

	It("does not retry fatal errors", func() {
		nl := &probe{fn: func(dynamo.Problem, int, float64, float64) (dynamo.Stats, error) {
			return dynamo.Stats{}, errors.Wrap(dynamo.ErrUnknownDofOrder, "scripted")
		}}
		_, err := newSolver(3).Advance(&driver{nl: nl, sm: linsolve.New(2)}, req)
		Expect(err).To(MatchError(dynamo.ErrUnknownDofOrder))
		Expect(dynamo.KindOf(err)).To(Equal(dynamo.KindFatal))
		Expect(nl.calls).To(Equal(1))
	})

	It("resets the linear system after a factorization failure", func() {
		sm := &countingSM{Dense: linsolve.New(2)}
		first := true
		nl := &probe{fn: func(dynamo.Problem, int, float64, float64) (dynamo.Stats, error) {
			if first {
				first = false
				return dynamo.Stats{Err: 1}, errors.Wrap(dynamo.ErrFactor, "scripted")
			}
			return dynamo.Stats{}, nil
		}}
		_, err := newSolver(2).Advance(&driver{nl: nl, sm: sm}, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(sm.resets).To(Equal(1))
		Expect(nl.calls).To(Equal(2))
	})

	It("relinks the caller buffers when the solver panics", func() {
		nl := &probe{fn: func(dynamo.Problem, int, float64, float64) (dynamo.Stats, error) {
			panic("boom")
		}}
		ds := newSolver(1)
		Expect(func() { _, _ = ds.Advance(&driver{nl: nl, sm: linsolve.New(2)}, req) }).To(Panic())
		x, _ := dm.Linked()
		Expect(&x[0]).To(BeIdenticalTo(&req.X[0]))
		Expect(ds.Residual(make(dynamo.State, 2))).To(MatchError(dynamo.ErrUnbound))
	})

	It("moves states and derivatives by the current coefficient", func() {
		cm := models.NewConstrainedMass()
		cdm := models.NewManager(cm)
		ds := integrators.NewDerivativeSolver(integrators.DerivativeParams{
			Params: integrators.Params{MaxIters: 1}, Coef: 0.25,
		})
		ds.SetDataManager(cdm)
		x, xp := cm.Initial()
		nl := &probe{fn: func(p dynamo.Problem, _ int, _, _ float64) (dynamo.Stats, error) {
			Expect(p.Update(dynamo.State{1, 2, 4})).To(Succeed())
			return dynamo.Stats{}, nil
		}}
		r := integrators.StepRequest{TStep: 1, X: x.Clone(), XPrime: xp.Clone()}
		_, err := ds.Advance(&driver{nl: nl, sm: linsolve.New(3)}, r)
		Expect(err).NotTo(HaveOccurred())

		// differential: x' += d, x += c·d; algebraic: x += d, x' += c·d
		Expect(r.XPrime[0]).To(Equal(xp[0] + 1))
		Expect(r.X[0]).To(Equal(x[0] + 0.25))
		Expect(r.XPrime[1]).To(Equal(xp[1] + 2))
		Expect(r.X[1]).To(Equal(x[1] + 0.5))
		Expect(r.X[2]).To(Equal(x[2] + 4))
		Expect(r.XPrime[2]).To(Equal(xp[2] + 1))
		Expect(cdm.Hooks().DerivativesUpdate).To(Equal(1))
	})
})
