package integrators_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/models"
)

var _ = Describe("EvalProd", func() {
	var (
		eq    *models.SpringMass
		dm    *models.Manager
		integ *integrators.Step1Integrator
		req   integrators.StepRequest
		n     int
	)

	BeforeEach(func() {
		eq = models.NewSpringMassChain(2)
		dm = models.NewManager(eq)
		integ = integrators.NewStep1(integrators.NewCrankNicolson(), integrators.Params{MaxIters: 10, Tol: 1e-10})
		integ.SetDataManager(dm)
		x0, xp0 := eq.Initial()
		n = len(x0)
		req = integrators.StepRequest{
			TStep:   0.01,
			Alpha:   1,
			History: historyOf([2]dynamo.State{x0, xp0}),
			X:       make(dynamo.State, n),
			XPrime:  make(dynamo.State, n),
		}
	})

	run := func(fn func(p dynamo.Problem)) {
		nl := &probe{fn: func(p dynamo.Problem, _ int, _, _ float64) (dynamo.Stats, error) {
			fn(p)
			return dynamo.Stats{}, nil
		}}
		_, err := integ.Advance(&driver{nl: nl}, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(nl.calls).To(Equal(1))
	}

	It("returns zero for a zero direction without evaluating the residual", func() {
		run(func(p dynamo.Problem) {
			before := dm.Hooks().Residual
			z := dynamo.State{9, 9, 9, 9}
			Expect(p.EvalProd(1e-6, make(dynamo.State, n), make(dynamo.State, n), z)).To(Succeed())
			Expect(z).To(Equal(dynamo.State{0, 0, 0, 0}))
			Expect(dm.Hooks().Residual).To(Equal(before))
		})
	})

	It("leaves the working state bit for bit unchanged", func() {
		run(func(p dynamo.Problem) {
			x, xp := req.X.Clone(), req.XPrime.Clone()
			f0 := make(dynamo.State, n)
			Expect(p.Residual(f0)).To(Succeed())
			z := make(dynamo.State, n)
			Expect(p.EvalProd(1e-6, f0, dynamo.State{0.3, -1, 2, 0.5}, z)).To(Succeed())
			Expect(req.X).To(Equal(x))
			Expect(req.XPrime).To(Equal(xp))
		})
	})

	It("approximates the Jacobian-vector product", func() {
		run(func(p dynamo.Problem) {
			f0 := make(dynamo.State, n)
			Expect(p.Residual(f0)).To(Succeed())
			w := dynamo.State{0.3, -1, 2, 0.5}
			z := make(dynamo.State, n)
			Expect(p.EvalProd(1e-6, f0, w, z)).To(Succeed())
			want := jacTimes(p, n, w)
			for i := range z {
				Expect(z[i]).To(BeNumerically("~", want[i], 1e-5))
			}
		})
	})

	It("refreshes the model after restoring the state", func() {
		run(func(p dynamo.Problem) {
			before := dm.Hooks().Update
			f0 := make(dynamo.State, n)
			Expect(p.EvalProd(1e-6, f0, dynamo.State{1, 0, 0, 0}, make(dynamo.State, n))).To(Succeed())
			// one update for the perturbation, one after the restore
			Expect(dm.Hooks().Update).To(Equal(before + 2))
		})
	})

	It("swallows a changed equation structure", func() {
		integ.SetDataManager(structural{dm})
		run(func(p dynamo.Problem) {
			x := req.X.Clone()
			z := make(dynamo.State, n)
			Expect(p.EvalProd(1e-6, make(dynamo.State, n), dynamo.State{1, 1, 1, 1}, z)).To(Succeed())
			Expect(z.IsValid()).To(BeTrue())
			Expect(req.X).To(Equal(x))
		})
	})

	It("rejects mismatched buffers", func() {
		run(func(p dynamo.Problem) {
			err := p.EvalProd(1e-6, make(dynamo.State, n), dynamo.State{1}, make(dynamo.State, n))
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})
	})

	It("refuses to run outside of Advance", func() {
		err := integ.EvalProd(1e-6, make(dynamo.State, n), dynamo.State{1, 0, 0, 0}, make(dynamo.State, n))
		Expect(err).To(MatchError(dynamo.ErrUnbound))
		Expect(integ.Residual(make(dynamo.State, n))).To(MatchError(dynamo.ErrUnbound))
	})
})

var _ = Describe("TestScale", func() {
	advanceWith := func(modResTest bool, fn func(p dynamo.Problem)) {
		eq := models.NewSpringMass()
		eq.X0 = 2
		dm := models.NewManager(eq)
		integ := integrators.NewStep1(integrators.NewCrankNicolson(), integrators.Params{MaxIters: 5, ModResTest: modResTest})
		integ.SetDataManager(dm)
		x0, xp0 := eq.Initial()
		nl := &probe{fn: func(p dynamo.Problem, _ int, _, _ float64) (dynamo.Stats, error) {
			fn(p)
			return dynamo.Stats{}, nil
		}}
		_, err := integ.Advance(&driver{nl: nl}, integrators.StepRequest{
			TStep: 0.1, Alpha: 1,
			History: historyOf([2]dynamo.State{x0, xp0}),
			X:       make(dynamo.State, 2), XPrime: make(dynamo.State, 2),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	It("is one when the modified residual test is off", func() {
		advanceWith(false, func(p dynamo.Problem) {
			s, alg := p.TestScale(dynamo.UniformScale(1))
			Expect(s).To(Equal(1.0))
			Expect(alg).To(Equal(0.05))
		})
	})

	It("lies in (0, 1] and shrinks with the derivative", func() {
		advanceWith(true, func(p dynamo.Problem) {
			s, _ := p.TestScale(dynamo.UniformScale(1))
			Expect(s).To(BeNumerically(">", 0))
			Expect(s).To(BeNumerically("<", 1))
			big, _ := p.TestScale(dynamo.UniformScale(10))
			Expect(big).To(BeNumerically("<", s))
		})
	})
})
