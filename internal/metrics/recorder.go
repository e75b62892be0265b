package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/ivpsolve/internal/backend"
)

const namespace = "ivpsolve"

// Recorder publishes per-session counters. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	sessions     prometheus.Gauge
	integrations *prometheus.CounterVec
	outputs      *prometheus.CounterVec
	resets       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	steps        *prometheus.CounterVec
	rhsEvals     *prometheus.CounterVec
}

// NewRecorder registers the session collectors with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Solver sessions created and not yet destroyed.",
		}),
		integrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrations_total",
			Help:      "Integrate calls by method and outcome.",
		}, []string{"method", "outcome"}),
		outputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_total",
			Help:      "Output times successfully reached.",
		}, []string{"method"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Successful session resets.",
		}, []string{"method"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed session operations by operation name.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "integrate_duration_seconds",
			Help:      "Wall time of Integrate calls.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"method"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_steps_total",
			Help:      "Internal backend steps taken.",
		}, []string{"method"}),
		rhsEvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rhs_evals_total",
			Help:      "Right-hand side evaluations.",
		}, []string{"method"}),
	}

	var err error
	if r.sessions, err = register(reg, r.sessions); err != nil {
		return nil, err
	}
	if r.integrations, err = register(reg, r.integrations); err != nil {
		return nil, err
	}
	if r.outputs, err = register(reg, r.outputs); err != nil {
		return nil, err
	}
	if r.resets, err = register(reg, r.resets); err != nil {
		return nil, err
	}
	if r.failures, err = register(reg, r.failures); err != nil {
		return nil, err
	}
	if r.duration, err = register(reg, r.duration); err != nil {
		return nil, err
	}
	if r.steps, err = register(reg, r.steps); err != nil {
		return nil, err
	}
	if r.rhsEvals, err = register(reg, r.rhsEvals); err != nil {
		return nil, err
	}
	return r, nil
}

// register reuses an identical collector already present on reg so several
// recorders can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *Recorder) SessionOpened() {
	if r == nil {
		return
	}
	r.sessions.Inc()
}

func (r *Recorder) SessionClosed() {
	if r == nil {
		return
	}
	r.sessions.Dec()
}

// ObserveIntegrate records one Integrate call. reached is the number of
// output times that completed.
func (r *Recorder) ObserveIntegrate(method string, reached int, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.integrations.WithLabelValues(method, outcome).Inc()
	r.outputs.WithLabelValues(method).Add(float64(reached))
	r.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveWork adds the backend work done between two stats snapshots.
func (r *Recorder) ObserveWork(method string, before, after backend.Stats) {
	if r == nil {
		return
	}
	if d := after.Steps - before.Steps; d > 0 {
		r.steps.WithLabelValues(method).Add(float64(d))
	}
	if d := after.RHSEvals - before.RHSEvals; d > 0 {
		r.rhsEvals.WithLabelValues(method).Add(float64(d))
	}
}

func (r *Recorder) ObserveReset(method string) {
	if r == nil {
		return
	}
	r.resets.WithLabelValues(method).Inc()
}

func (r *Recorder) ObserveFailure(op string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(op).Inc()
}
