package integrators_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/models"
)

var _ = Describe("InverseDynamicsStepSolver", func() {
	const n = 3
	var (
		chain *models.PrescribedChain
		im    *models.InverseManager
		solv  *integrators.InverseDynamicsStepSolver
		req   integrators.StepRequest
	)

	BeforeEach(func() {
		chain = models.NewPrescribedChain(n)
		im = models.NewInverseManager(chain)
		solv = integrators.NewInverseDynamics(integrators.Params{MaxIters: 10, Tol: 1e-10})
		req = integrators.StepRequest{
			TStep:       0.01,
			X:           chain.Initial(),
			XPrime:      make(dynamo.State, n),
			XPrimePrime: make(dynamo.State, n),
			Lambda:      make(dynamo.State, n),
		}
		im.SetTime(0.3)
	})

	It("solves the phases in order and reassembles only where needed", func() {
		pj := &phaseJacobians{InverseManager: im}
		solv.SetDataManager(pj)

		st, err := solv.Advance(newtonDriver(n), req)
		Expect(err).NotTo(HaveOccurred())

		Expect(im.Phases()).To(Equal([]integrators.Phase{
			integrators.PhasePosition,
			integrators.PhaseVelocity,
			integrators.PhaseAcceleration,
			integrators.PhaseInverseDynamics,
		}))
		Expect(pj.jacobians).To(Equal([]integrators.Phase{
			integrators.PhasePosition,
			integrators.PhaseInverseDynamics,
		}))
		Expect(st.Iters).To(Equal(2))
		Expect(im.Converged()).To(Equal(1))
		Expect(solv.Phase()).To(Equal(integrators.PhaseInverseDynamics))
		// the next step starts with a position solve
		Expect(solv.NeedsJacobian()).To(BeTrue())
	})

	It("recovers the prescribed motion and the actuator forces", func() {
		solv.SetDataManager(im)
		_, err := solv.Advance(newtonDriver(n), req)
		Expect(err).NotTo(HaveOccurred())

		var q, qd, qdd float64
		for i := 0; i < n; i++ {
			p, pd, pdd := chain.Prescribed(i, 0.3)
			q, qd, qdd = q+p, qd+pd, qdd+pdd
			Expect(req.X[i]).To(BeNumerically("~", q, 1e-10))
			Expect(req.XPrime[i]).To(BeNumerically("~", qd, 1e-10))
			Expect(req.XPrimePrime[i]).To(BeNumerically("~", qdd, 1e-10))
		}

		// the forces must balance the dynamics through Φ_xᵀ
		forces := make(dynamo.State, n)
		chain.Dynamics(0.3, req.X, req.XPrime, req.XPrimePrime, forces)
		jac := mat.NewDense(n, n, nil)
		chain.ConstraintJacobian(0.3, req.X, jac)
		var got mat.VecDense
		got.MulVec(jac.T(), mat.NewVecDense(n, req.Lambda))
		for i := 0; i < n; i++ {
			Expect(got.AtVec(i)).To(BeNumerically("~", forces[i], 1e-9))
		}
	})

	It("preserves all four working buffers in EvalProd", func() {
		solv.SetDataManager(im)
		nl := &probe{fn: func(p dynamo.Problem, _ int, _, _ float64) (dynamo.Stats, error) {
			before := [][]float64{req.X.Clone(), req.XPrime.Clone(), req.XPrimePrime.Clone(), req.Lambda.Clone()}
			f0 := make(dynamo.State, n)
			Expect(p.Residual(f0)).To(Succeed())
			z := make(dynamo.State, n)
			Expect(p.EvalProd(1e-6, f0, dynamo.State{1, 2, 3}, z)).To(Succeed())
			// position constraints are linear with unit Jacobian rows
			Expect(z[0]).To(BeNumerically("~", 1, 1e-6))
			Expect(z[1]).To(BeNumerically("~", 1, 1e-6))
			after := [][]float64{req.X, req.XPrime, req.XPrimePrime, req.Lambda}
			for i := range before {
				Expect(after[i]).To(BeEquivalentTo(before[i]))
			}
			return dynamo.Stats{}, nil
		}}
		_, _ = solv.Advance(&driver{nl: nl, sm: newtonDriver(n).sm}, req)
		Expect(nl.calls).To(Equal(1))
	})

	It("reports underactuated problems as not implemented", func() {
		solv.SetDataManager(underactuated{im})
		nl := &probe{}
		_, err := solv.Advance(&driver{nl: nl}, req)
		Expect(err).To(MatchError(dynamo.ErrNotImplemented))
		Expect(dynamo.KindOf(err)).To(Equal(dynamo.KindFatal))
		Expect(nl.calls).To(BeZero())
	})

	It("rejects missing buffers", func() {
		solv.SetDataManager(im)
		req.Lambda = nil
		_, err := solv.Advance(newtonDriver(n), req)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})
