package integrators_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/integrators"
	"github.com/san-kum/stepsol/internal/models"
)

var _ = Describe("Step1Integrator", func() {
	params := integrators.Params{MaxIters: 20, Tol: 1e-10}

	It("reproduces a linear trajectory without corrector iterations", func() {
		for _, m := range []integrators.Step1Method{integrators.NewCrankNicolson(), integrators.NewImplicitEuler()} {
			eq := &drift{rate: 2, order: dynamo.Differential}
			dm := models.NewManager(eq)
			integ := integrators.NewStep1(m, params)
			integ.SetDataManager(dm)
			dm.SetTime(0.6)

			req := integrators.StepRequest{
				TStep: 0.1, Alpha: 1,
				History: historyOf([2]dynamo.State{{1}, {2}}),
				X:       make(dynamo.State, 1), XPrime: make(dynamo.State, 1),
			}
			st, err := integ.Advance(newtonDriver(1), req)
			Expect(err).NotTo(HaveOccurred(), m.Name())
			Expect(st.Iters).To(Equal(0), m.Name())
			Expect(req.X[0]).To(BeNumerically("~", 1.2, 1e-12), m.Name())
			Expect(req.XPrime[0]).To(Equal(2.0), m.Name())
		}
	})

	It("tracks the harmonic oscillator with Crank-Nicolson", func() {
		eq := models.NewSpringMass()
		eq.Damping = []float64{0}
		dm := models.NewManager(eq)
		integ := integrators.NewStep1(integrators.NewCrankNicolson(), params)
		integ.SetDataManager(dm)
		d := newtonDriver(2)

		x, xp := eq.Initial()
		h := dynamo.NewHistory(1)
		h.Push(x, xp)
		dt := 0.01
		for i := 1; i <= 100; i++ {
			dm.SetTime(float64(i) * dt)
			req := integrators.StepRequest{
				TStep: dt, Alpha: 1, History: h,
				X: make(dynamo.State, 2), XPrime: make(dynamo.State, 2),
			}
			_, err := integ.Advance(d, req)
			Expect(err).NotTo(HaveOccurred())
			h.Push(req.X, req.XPrime)
		}
		w := math.Sqrt(models.DefaultStiffness / models.DefaultMass)
		last, _ := h.Latest()
		Expect(last[0]).To(BeNumerically("~", math.Cos(w), 1e-3))
		Expect(last[1]).To(BeNumerically("~", -w*math.Sin(w), 3e-3))
		Expect(dm.Hooks().AfterPredict).To(Equal(100))
		Expect(dm.Hooks().AfterConvergence).To(Equal(100))
		Expect(eq.Energy(last, nil)).To(BeNumerically("~", 0.5*models.DefaultStiffness, 1e-9))
	})

	It("rejects an unknown DOF order before solving", func() {
		eq := &drift{rate: 1, order: dynamo.DofOrder(7)}
		integ := integrators.NewStep1(integrators.NewCrankNicolson(), params)
		integ.SetDataManager(models.NewManager(eq))
		nl := &probe{}
		_, err := integ.Advance(&driver{nl: nl}, integrators.StepRequest{
			TStep: 0.1, History: historyOf([2]dynamo.State{{0}, {1}}),
			X: make(dynamo.State, 1), XPrime: make(dynamo.State, 1),
		})
		Expect(err).To(MatchError(dynamo.ErrUnknownDofOrder))
		Expect(dynamo.KindOf(err)).To(Equal(dynamo.KindFatal))
		Expect(nl.calls).To(BeZero())
	})

	It("requires a history", func() {
		integ := integrators.NewStep1(integrators.NewCrankNicolson(), params)
		integ.SetDataManager(models.NewManager(&drift{rate: 1}))
		_, err := integ.Advance(&driver{nl: &probe{}}, integrators.StepRequest{
			TStep: 0.1, X: make(dynamo.State, 1), XPrime: make(dynamo.State, 1),
		})
		Expect(err).To(MatchError(dynamo.ErrHistoryTooShort))
	})

	It("predicts the algebraic integral with b0Algebraic", func() {
		cm := models.NewConstrainedMass()
		dm := models.NewManager(cm)
		x, xp := cm.Initial()
		xp[2] = 3
		x[2] = 0.5
		req := integrators.StepRequest{
			TStep: 0.2, Alpha: 1, History: historyOf([2]dynamo.State{x, xp}),
			X: make(dynamo.State, 3), XPrime: make(dynamo.State, 3),
		}
		var report integrators.PredictionReport
		integ := integrators.NewStep1(integrators.NewCrankNicolson(), params,
			integrators.WithPredictionHook(func(r integrators.PredictionReport) { report = r }))
		integ.SetDataManager(dm)
		integ.OutputTypes(true)

		_, err := integ.Advance(&driver{nl: &probe{}}, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.X[2]).To(Equal(0.5))
		Expect(report.XPrime[2]).To(BeNumerically("~", 3+0.1*(0.5+0.5), 1e-15))
		Expect(report.XPrev).To(HaveLen(1))
		Expect(report.Dofs[2].Order).To(Equal(dynamo.Algebraic))
		Expect(integ.Coef()).To(Equal(integrators.Coef{B0Differential: 0.1, B0Algebraic: 0.1}))
	})

	It("applies corrector increments by DOF order", func() {
		cm := models.NewConstrainedMass()
		dm := models.NewManager(cm)
		integ := integrators.NewStep1(integrators.NewImplicitEuler(), params)
		integ.SetDataManager(dm)
		x, xp := cm.Initial()
		req := integrators.StepRequest{
			TStep: 0.5, Alpha: 1, History: historyOf([2]dynamo.State{x, xp}),
			X: make(dynamo.State, 3), XPrime: make(dynamo.State, 3),
		}
		nl := &probe{fn: func(p dynamo.Problem, _ int, _, _ float64) (dynamo.Stats, error) {
			bx, bxp := req.X.Clone(), req.XPrime.Clone()
			Expect(p.Update(dynamo.State{1, 1, 1})).To(Succeed())
			for i := 0; i < 2; i++ {
				Expect(req.XPrime[i]).To(Equal(bxp[i] + 1))
				Expect(req.X[i]).To(Equal(bx[i] + 0.5))
			}
			Expect(req.X[2]).To(Equal(bx[2] + 1))
			Expect(req.XPrime[2]).To(Equal(bxp[2] + 0.5))
			return dynamo.Stats{}, nil
		}}
		_, err := integ.Advance(&driver{nl: nl}, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(dm.Hooks().Update).To(Equal(1))
	})

	It("checks the analytic Jacobian against finite differences", func() {
		eq := models.NewPendulum()
		dm := models.NewManager(eq)
		dm.SetFDJac(true)
		integ := integrators.NewStep1(integrators.NewCrankNicolson(), params)
		integ.SetDataManager(dm)
		x, xp := eq.Initial()
		req := integrators.StepRequest{
			TStep: 0.01, Alpha: 1, History: historyOf([2]dynamo.State{x, xp}),
			X: make(dynamo.State, 5), XPrime: make(dynamo.State, 5),
		}
		nl := &probe{fn: func(p dynamo.Problem, _ int, _, _ float64) (dynamo.Stats, error) {
			before := req.X.Clone()
			jac := mat.NewDense(5, 5, nil)
			Expect(p.Jacobian(jac)).To(Succeed())
			fd, err := integ.FDJacobian()
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.EqualApprox(jac, fd, 1e-6)).To(BeTrue())
			Expect(req.X).To(Equal(before))
			return dynamo.Stats{}, nil
		}}
		_, err := integ.Advance(&driver{nl: nl}, req)
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Step2Integrator", func() {
	params := integrators.Params{MaxIters: 20, Tol: 1e-10}

	It("needs two converged states", func() {
		integ := integrators.NewStep2(integrators.NewMultistep(0.6), params)
		Expect(integ.NumPreviousStates()).To(Equal(2))
		integ.SetDataManager(models.NewManager(&drift{rate: 1}))
		_, err := integ.Advance(&driver{nl: &probe{}}, integrators.StepRequest{
			TStep: 0.1, Alpha: 1, History: historyOf([2]dynamo.State{{0}, {1}}),
			X: make(dynamo.State, 1), XPrime: make(dynamo.State, 1),
		})
		Expect(err).To(MatchError(dynamo.ErrHistoryTooShort))
	})

	DescribeTable("reproduces a linear trajectory",
		func(rho, alpha float64) {
			eq := &drift{rate: -1.5, order: dynamo.Differential}
			dm := models.NewManager(eq)
			integ := integrators.NewStep2(integrators.NewMultistep(rho), params)
			integ.SetDataManager(dm)
			dt := 0.1
			prev := dt / alpha
			req := integrators.StepRequest{
				TStep: dt, Alpha: alpha,
				History: historyOf(
					[2]dynamo.State{{1}, {-1.5}},
					[2]dynamo.State{{1 + 1.5*prev}, {-1.5}},
				),
				X: make(dynamo.State, 1), XPrime: make(dynamo.State, 1),
			}
			st, err := integ.Advance(newtonDriver(1), req)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.X[0]).To(BeNumerically("~", 1-1.5*dt, 1e-12))
			Expect(req.XPrime[0]).To(BeNumerically("~", -1.5, 1e-12))
			Expect(st.Iters).To(BeNumerically("<=", 1))
		},
		Entry("no dissipation", 1.0, 1.0),
		Entry("BDF2", 0.0, 1.0),
		Entry("intermediate", 0.6, 1.0),
		Entry("step ratio", 0.6, 2.0),
		Entry("step ratio BDF2", 0.0, 0.5),
		Entry("step ratio no dissipation", 1.0, 1.25),
	)

	It("integrates the damped oscillator close to Crank-Nicolson", func() {
		run := func(integ integrators.Integrator, dm *models.Manager, eq *models.SpringMass, steps int) dynamo.State {
			x, xp := eq.Initial()
			h := dynamo.NewHistory(2)
			h.Push(x, xp)
			starter := integrators.NewStep1(integrators.NewCrankNicolson(), params)
			starter.SetDataManager(dm)
			d := newtonDriver(2)
			dt := 0.005
			for i := 1; i <= steps; i++ {
				dm.SetTime(float64(i) * dt)
				req := integrators.StepRequest{
					TStep: dt, Alpha: 1, History: h,
					X: make(dynamo.State, 2), XPrime: make(dynamo.State, 2),
				}
				var err error
				if h.Len() < integ.NumPreviousStates() {
					_, err = starter.Advance(d, req)
				} else {
					_, err = integ.Advance(d, req)
				}
				Expect(err).NotTo(HaveOccurred())
				h.Push(req.X, req.XPrime)
			}
			last, _ := h.Latest()
			return last
		}

		eq := models.NewSpringMass()
		dm := models.NewManager(eq)
		ms := integrators.NewStep2(integrators.NewMultistep(0.6), params)
		ms.SetDataManager(dm)
		got := run(ms, dm, eq, 200)

		cn := integrators.NewStep1(integrators.NewCrankNicolson(), params)
		cdm := models.NewManager(eq)
		cn.SetDataManager(cdm)
		want := run(cn, cdm, eq, 200)

		Expect(got[0]).To(BeNumerically("~", want[0], 1e-3))
		Expect(got[1]).To(BeNumerically("~", want[1], 5e-3))
	})
})
