package session_test

import (
	"errors"
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/backend/multistep"
	"github.com/san-kum/ivpsolve/internal/dynamo"
	"github.com/san-kum/ivpsolve/internal/metrics"
	"github.com/san-kum/ivpsolve/internal/session"
)

// exponential solves y_i' = k_i y_i with the rates bound as parameters.
func exponential(t float64, y, dydt dynamo.State, data any) error {
	k := data.([]float64)
	for i := range y {
		dydt[i] = k[i] * y[i]
	}
	return nil
}

func ready(b backend.Backend, method dynamo.Method, binding dynamo.Binding, y0 dynamo.State) *session.Session {
	s, err := session.New(b, method)
	Expect(err).NotTo(HaveOccurred())
	Expect(s.Configure(binding, 0, y0)).To(Succeed())
	Expect(s.SetTolerances(1e-8, 1e-8)).To(Succeed())
	Expect(s.Prepare()).To(Succeed())
	Expect(s.Stage()).To(Equal(session.Ready))
	return s
}

var _ = Describe("Session", func() {
	var fb *fakeBackend

	BeforeEach(func() {
		fb = &fakeBackend{}
	})

	Describe("creation", func() {
		It("starts in Created", func() {
			s, err := session.New(fb, dynamo.NonStiff)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Stage()).To(Equal(session.Created))
			Expect(s.Dim()).To(BeZero())
			Expect(s.State()).To(BeNil())
		})

		It("reports backend creation failure", func() {
			fb.createErr = errInjected
			s, err := session.New(fb, dynamo.Stiff)
			Expect(s).To(BeNil())
			Expect(err).To(MatchError(session.ErrBackendInit))
			Expect(errors.Is(err, errInjected)).To(BeTrue())
		})
	})

	Describe("configuration stages", func() {
		It("reaches Ready without Prepare for non-stiff", func() {
			s, err := session.New(fb, dynamo.NonStiff)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{1, 2})).To(Succeed())
			Expect(s.Stage()).To(Equal(session.Initialized))
			Expect(s.Dim()).To(Equal(2))
			Expect(s.SetTolerances(1e-6, 1e-6)).To(Succeed())
			Expect(s.Stage()).To(Equal(session.Ready))
			Expect(s.Prepare()).To(Succeed())
			Expect(s.LinearSolverReady()).To(BeFalse())
			Expect(fb.count("attach")).To(BeZero())
		})

		It("requires Prepare for stiff", func() {
			s, err := session.New(fb, dynamo.Stiff)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{1})).To(Succeed())
			Expect(s.SetTolerances(1e-6, 1e-6)).To(Succeed())
			Expect(s.Stage()).To(Equal(session.ToleranceSet))

			res, err := s.Integrate([]float64{1})
			Expect(res).To(BeNil())
			Expect(err).To(MatchError(session.ErrNotReady))
			Expect(fb.count("advance")).To(BeZero())

			Expect(s.Prepare()).To(Succeed())
			Expect(s.Stage()).To(Equal(session.Ready))
			Expect(s.LinearSolverReady()).To(BeTrue())
			Expect(s.Prepare()).To(MatchError(session.ErrOutOfOrder))
		})

		It("rejects operations out of order", func() {
			s, _ := session.New(fb, dynamo.Stiff)
			Expect(s.SetTolerances(1e-6, 1e-6)).To(MatchError(session.ErrOutOfOrder))
			Expect(s.Prepare()).To(MatchError(session.ErrOutOfOrder))
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{1})).To(Succeed())
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{1})).To(MatchError(session.ErrOutOfOrder))
			Expect(s.Stage()).To(Equal(session.Initialized))
		})

		It("binds initial parameters during Configure", func() {
			s, _ := session.New(fb, dynamo.NonStiff)
			Expect(s.Configure(dynamo.Binding{F: noopRHS, Data: []float64{3}}, 0, dynamo.State{1})).To(Succeed())
			Expect(fb.handle.data).To(Equal([]float64{3}))
			Expect(s.Parameters()).To(Equal([]float64{3}))
		})

		It("keeps its own copy of the initial state", func() {
			y0 := dynamo.State{1, 2}
			s, _ := session.New(fb, dynamo.NonStiff)
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, y0)).To(Succeed())
			y0[0] = 99
			Expect(s.State()).To(Equal(dynamo.State{1, 2}))
		})

		It("rejects a non-finite initial state without touching the backend", func() {
			s, _ := session.New(fb, dynamo.NonStiff)
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{math.Inf(1)})).To(MatchError(dynamo.ErrInvalidState))
			Expect(fb.count("init")).To(BeZero())
			Expect(s.Stage()).To(Equal(session.Created))
		})

		It("rejects an empty state without touching the backend", func() {
			s, _ := session.New(fb, dynamo.NonStiff)
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, nil)).To(MatchError(session.ErrDimensionMismatch))
			Expect(fb.count("init")).To(BeZero())
			Expect(s.Stage()).To(Equal(session.Created))
		})

		DescribeTable("invalid tolerances leave the stage unchanged",
			func(abs, rel float64) {
				s, _ := session.New(fb, dynamo.NonStiff)
				Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{1})).To(Succeed())
				Expect(s.SetTolerances(abs, rel)).To(MatchError(session.ErrInvalidTolerance))
				Expect(s.Stage()).To(Equal(session.Initialized))
				Expect(fb.count("tolerances")).To(BeZero())
			},
			Entry("zero abs", 0.0, 1e-6),
			Entry("negative rel", 1e-6, -1.0),
			Entry("NaN", math.NaN(), 1e-6),
			Entry("infinite", 1e-6, math.Inf(1)),
		)

		It("allows tolerances to change once ready", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{1})
			Expect(s.SetTolerances(1e-4, 1e-3)).To(Succeed())
			Expect(s.Stage()).To(Equal(session.Ready))
			Expect(s.Tolerances()).To(Equal(dynamo.Tolerances{Abs: 1e-4, Rel: 1e-3}))
		})
	})

	Describe("backend configuration failures", func() {
		It("fails the session when Init fails", func() {
			fb.initErr = errInjected
			s, _ := session.New(fb, dynamo.NonStiff)
			err := s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{1})
			Expect(err).To(MatchError(session.ErrBackendInit))

			var opErr *session.OpError
			Expect(errors.As(err, &opErr)).To(BeTrue())
			Expect(opErr.Op).To(Equal("configure"))

			Expect(s.Stage()).To(Equal(session.Failed))
			Expect(s.SetTolerances(1e-6, 1e-6)).To(MatchError(session.ErrFailed))
			Expect(s.Destroy()).To(Succeed())
			Expect(fb.calls).To(ContainElement("release-handle"))
		})

		It("fails the session when the linear solver cannot be attached", func() {
			fb.attachErr = errInjected
			s, _ := session.New(fb, dynamo.Stiff)
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{1})).To(Succeed())
			Expect(s.SetTolerances(1e-6, 1e-6)).To(Succeed())
			Expect(s.Prepare()).To(MatchError(session.ErrLinearSolverSetup))
			Expect(s.Stage()).To(Equal(session.Failed))
			Expect(s.LinearSolverReady()).To(BeFalse())
		})

		It("fails the session when parameters cannot be bound", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{1})
			fb.userDataErr = errInjected
			Expect(s.BindParameters(1)).To(MatchError(session.ErrDataBinding))
			Expect(s.Stage()).To(Equal(session.Failed))
		})
	})

	Describe("Integrate", func() {
		It("returns one row per output time", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5, 5})
			res, err := s.Integrate([]float64{0.5, 1, 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Len()).To(Equal(3))
			Expect(res.Dim()).To(Equal(2))
			Expect(res.Times).To(Equal([]float64{0.5, 1, 2}))
			Expect(res.States[1]).To(Equal(dynamo.State{1, 1}))
			Expect(res.Column(0)).To(Equal([]float64{0.5, 1, 2}))
			Expect(res.Dense().At(2, 1)).To(Equal(2.0))
			Expect(s.CurrentTime()).To(Equal(2.0))
			Expect(s.State()).To(Equal(dynamo.State{2, 2}))
		})

		It("returns the current state for an output at the current time", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			res, err := s.Integrate([]float64{0, 0, 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.States[0]).To(Equal(dynamo.State{5}))
			Expect(res.States[1]).To(Equal(dynamo.State{5}))
			Expect(fb.count("advance")).To(Equal(1))
		})

		It("returns an empty result for no output times", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			res, err := s.Integrate(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Len()).To(BeZero())
			Expect(res.Dense()).To(BeNil())
		})

		DescribeTable("rejects bad output times before advancing",
			func(times []float64) {
				s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
				res, err := s.Integrate(times)
				Expect(res).To(BeNil())
				Expect(err).To(MatchError(session.ErrTimeOrder))
				Expect(fb.count("advance")).To(BeZero())
				Expect(s.Stage()).To(Equal(session.Ready))
			},
			Entry("decreasing", []float64{1, 0.5}),
			Entry("before current time", []float64{-1}),
			Entry("NaN", []float64{math.NaN()}),
		)

		It("keeps the last good output after a mid-sequence failure", func() {
			limit := 0.45
			fb.failAfter = &limit
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})

			res, err := s.Integrate([]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
			Expect(res).To(BeNil())
			Expect(err).To(MatchError(session.ErrIntegration))
			Expect(err).To(MatchError(backend.ErrRHSFailure))

			var ierr *session.IntegrationError
			Expect(errors.As(err, &ierr)).To(BeTrue())
			Expect(ierr.Index).To(Equal(4))
			Expect(ierr.Time).To(Equal(0.5))
			Expect(ierr.Reached).To(Equal(0.4))

			Expect(s.Stage()).To(Equal(session.Ready))
			Expect(s.CurrentTime()).To(Equal(0.4))
			Expect(s.State()).To(Equal(dynamo.State{0.4}))
			Expect(fb.calls[len(fb.calls)-1]).To(Equal("reinit"))
		})

		It("fails the session when the rewind fails", func() {
			limit := 0.0
			fb.failAfter = &limit
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			fb.reinitErr = errInjected

			_, err := s.Integrate([]float64{1})
			Expect(err).To(MatchError(session.ErrIntegration))
			Expect(err).To(MatchError(session.ErrReinit))
			Expect(s.Stage()).To(Equal(session.Failed))
		})
	})

	Describe("Reset", func() {
		It("rewinds time and state", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			_, err := s.Integrate([]float64{1})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Reset(0, dynamo.State{7})).To(Succeed())
			Expect(s.CurrentTime()).To(BeZero())
			Expect(s.State()).To(Equal(dynamo.State{7}))
			Expect(s.Stage()).To(Equal(session.Ready))
		})

		It("rejects a wrong-length state without touching the backend", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5, 5})
			Expect(s.Reset(0, dynamo.State{1})).To(MatchError(session.ErrDimensionMismatch))
			Expect(fb.count("reinit")).To(BeZero())
			Expect(s.Stage()).To(Equal(session.Ready))
		})

		It("rejects a non-finite state without failing the session", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			Expect(s.Reset(0, dynamo.State{math.NaN()})).To(MatchError(session.ErrReinit))
			Expect(fb.count("reinit")).To(BeZero())
			Expect(s.Stage()).To(Equal(session.Ready))
		})

		It("requires a ready session", func() {
			s, _ := session.New(fb, dynamo.NonStiff)
			Expect(s.Reset(0, dynamo.State{1})).To(MatchError(session.ErrNotReady))
		})

		It("fails the session when the backend cannot reinitialize", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			fb.reinitErr = errInjected
			Expect(s.Reset(0, dynamo.State{1})).To(MatchError(session.ErrReinit))
			Expect(s.Stage()).To(Equal(session.Failed))
		})
	})

	Describe("Destroy", func() {
		It("releases the solver, the Jacobian and the handle in order", func() {
			s := ready(fb, dynamo.Stiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			Expect(s.Destroy()).To(Succeed())
			n := len(fb.calls)
			Expect(fb.calls[n-3:]).To(Equal([]string{"release-solver", "release-jacobian", "release-handle"}))
			Expect(s.Stage()).To(Equal(session.Destroyed))
			Expect(s.State()).To(BeNil())
		})

		It("releases only the handle before configuration", func() {
			s, _ := session.New(fb, dynamo.Stiff)
			Expect(s.Destroy()).To(Succeed())
			Expect(fb.calls).To(Equal([]string{"create", "release-handle"}))
		})

		It("rejects every operation afterwards", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			Expect(s.Destroy()).To(Succeed())

			_, err := s.Integrate([]float64{1})
			Expect(err).To(MatchError(session.ErrDestroyed))
			Expect(s.Reset(0, dynamo.State{1})).To(MatchError(session.ErrDestroyed))
			Expect(s.SetTolerances(1e-6, 1e-6)).To(MatchError(session.ErrDestroyed))
			Expect(s.BindParameters(nil)).To(MatchError(session.ErrDestroyed))
			Expect(s.Destroy()).To(MatchError(session.ErrDestroyed))
		})

		It("reports release failures but still destroys", func() {
			fb.releaseErr = errInjected
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			err := s.Destroy()
			Expect(errors.Is(err, errInjected)).To(BeTrue())
			Expect(s.Stage()).To(Equal(session.Destroyed))
		})
	})

	Describe("metrics", func() {
		It("counts sessions, integrations and failures", func() {
			reg := prometheus.NewRegistry()
			rec, err := metrics.NewRecorder(reg)
			Expect(err).NotTo(HaveOccurred())

			s, err := session.New(fb, dynamo.NonStiff, session.WithMetrics(rec), session.WithName("counted"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Name()).To(Equal("counted"))
			Expect(s.Configure(dynamo.Binding{F: noopRHS}, 0, dynamo.State{1})).To(Succeed())
			Expect(s.SetTolerances(-1, 1)).To(MatchError(session.ErrInvalidTolerance))
			Expect(s.SetTolerances(1e-6, 1e-6)).To(Succeed())
			_, err = s.Integrate([]float64{1, 2})
			Expect(err).NotTo(HaveOccurred())

			Expect(testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP ivpsolve_sessions_active Solver sessions created and not yet destroyed.
# TYPE ivpsolve_sessions_active gauge
ivpsolve_sessions_active 1
# HELP ivpsolve_integrations_total Integrate calls by method and outcome.
# TYPE ivpsolve_integrations_total counter
ivpsolve_integrations_total{method="nonstiff",outcome="ok"} 1
# HELP ivpsolve_failures_total Failed session operations by operation name.
# TYPE ivpsolve_failures_total counter
ivpsolve_failures_total{op="set-tolerances"} 1
`), "ivpsolve_sessions_active", "ivpsolve_integrations_total", "ivpsolve_failures_total")).To(Succeed())

			Expect(s.Destroy()).To(Succeed())
			Expect(testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP ivpsolve_sessions_active Solver sessions created and not yet destroyed.
# TYPE ivpsolve_sessions_active gauge
ivpsolve_sessions_active 0
`), "ivpsolve_sessions_active")).To(Succeed())
		})
	})

	Describe("SetMaxSteps", func() {
		It("is unsupported by backends without a step limit", func() {
			s := ready(fb, dynamo.NonStiff, dynamo.Binding{F: noopRHS}, dynamo.State{5})
			Expect(s.SetMaxSteps(10)).To(MatchError(errors.ErrUnsupported))
		})
	})
})

var _ = Describe("Session on the multistep backend", func() {
	var (
		s     *session.Session
		times []float64
	)

	BeforeEach(func() {
		s = nil
		times = []float64{0.25, 0.5, 0.75, 1}
	})

	AfterEach(func() {
		if s != nil {
			_ = s.Destroy()
		}
	})

	DescribeTable("matches the exact exponential solution",
		func(method dynamo.Method) {
			rates := []float64{1, 2}
			s = ready(multistep.New(), method, dynamo.Binding{F: exponential, Data: rates}, dynamo.State{1, 1})

			res, err := s.Integrate(times)
			Expect(err).NotTo(HaveOccurred())
			for i, t := range times {
				Expect(res.States[i][0]).To(BeNumerically("~", math.Exp(t), 1e-6))
				Expect(res.States[i][1]).To(BeNumerically("~", math.Exp(2*t), 1e-6))
			}

			stats, ok := s.Stats()
			Expect(ok).To(BeTrue())
			Expect(stats.Steps).To(BeNumerically(">", 0))
			Expect(stats.CurrentTime).To(Equal(1.0))
		},
		Entry("non-stiff", dynamo.NonStiff),
		Entry("stiff", dynamo.Stiff),
	)

	DescribeTable("reproduces a run after reset",
		func(method dynamo.Method) {
			s = ready(multistep.New(), method, dynamo.Binding{F: exponential, Data: []float64{1, 2}}, dynamo.State{1, 1})

			first, err := s.Integrate(times)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Reset(0, dynamo.State{1, 1})).To(Succeed())
			second, err := s.Integrate(times)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.States).To(Equal(first.States))
		},
		Entry("non-stiff", dynamo.NonStiff),
		Entry("stiff", dynamo.Stiff),
	)

	It("picks up swapped parameters after reset", func() {
		s = ready(multistep.New(), dynamo.Stiff, dynamo.Binding{F: exponential, Data: []float64{1, 2}}, dynamo.State{1, 1})
		_, err := s.Integrate(times)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Reset(0, dynamo.State{1, 1})).To(Succeed())
		Expect(s.BindParameters([]float64{2, 1})).To(Succeed())
		res, err := s.Integrate([]float64{1})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.States[0][0]).To(BeNumerically("~", math.Exp(2), 1e-5))
		Expect(res.States[0][1]).To(BeNumerically("~", math.E, 1e-5))
	})

	It("stops at the last output before a failing right-hand side", func() {
		failing := func(t float64, y, dydt dynamo.State, data any) error {
			if t > 0.45 {
				return errInjected
			}
			return exponential(t, y, dydt, data)
		}
		s = ready(multistep.New(), dynamo.NonStiff, dynamo.Binding{F: failing, Data: []float64{1}}, dynamo.State{1})

		res, err := s.Integrate([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
		Expect(res).To(BeNil())
		Expect(err).To(MatchError(errInjected))

		var ierr *session.IntegrationError
		Expect(errors.As(err, &ierr)).To(BeTrue())
		Expect(ierr.Index).To(Equal(4))
		Expect(s.CurrentTime()).To(Equal(0.4))
		Expect(s.State()[0]).To(BeNumerically("~", math.Exp(0.4), 1e-6))

		again, err := s.Integrate([]float64{0.4})
		Expect(err).NotTo(HaveOccurred())
		Expect(again.States[0]).To(Equal(s.State()))
	})

	It("reports too much work under a tight step limit", func() {
		s = ready(multistep.New(), dynamo.NonStiff, dynamo.Binding{F: exponential, Data: []float64{1}}, dynamo.State{1})
		Expect(s.SetMaxSteps(2)).To(Succeed())
		_, err := s.Integrate([]float64{10})
		Expect(err).To(MatchError(backend.ErrTooMuchWork))
		Expect(s.CurrentTime()).To(BeZero())
	})
})
