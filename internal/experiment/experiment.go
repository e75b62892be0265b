package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/config"
	"github.com/san-kum/ivpsolve/internal/dynamo"
	"github.com/san-kum/ivpsolve/internal/logging"
	"github.com/san-kum/ivpsolve/internal/metrics"
	"github.com/san-kum/ivpsolve/internal/models"
	"github.com/san-kum/ivpsolve/internal/session"
)

var ErrNotSetup = errors.New("experiment: not set up")

// Run is one integration of the scenario with a given parameter set.
type Run struct {
	Params  map[string]float64
	Result  *session.Result
	Stats   backend.Stats
	Elapsed time.Duration
}

type Option func(*Experiment)

func WithLogger(log *slog.Logger) Option {
	return func(e *Experiment) {
		if log != nil {
			e.log = log
		}
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Experiment) { e.metrics = r }
}

// Experiment owns one prepared session for a scenario. Runs and sweeps
// reuse it through Reset so the linear solver is built only once.
type Experiment struct {
	cfg     *config.Config
	model   models.Model
	backend backend.Backend
	method  dynamo.Method
	y0      dynamo.State

	log     *slog.Logger
	metrics *metrics.Recorder

	session *session.Session
}

func New(reg *Registry, cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := reg.GetModel(cfg.Model, len(cfg.InitState))
	if err != nil {
		return nil, err
	}
	b, err := reg.GetBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	method, err := cfg.ParsedMethod(model.Method())
	if err != nil {
		return nil, err
	}

	y0 := model.DefaultState()
	if len(cfg.InitState) > 0 {
		y0 = dynamo.State(cfg.InitState).Clone()
	}
	if len(y0) != model.Dim() {
		return nil, fmt.Errorf("model %s has dimension %d, initial state has %d", model.Name(), model.Dim(), len(y0))
	}
	// unknown parameter names fail here rather than mid-sweep
	if _, err := models.Params(model, cfg.Params); err != nil {
		return nil, err
	}
	for _, set := range cfg.Sweep {
		if _, err := models.Params(model, merged(cfg.Params, set)); err != nil {
			return nil, err
		}
	}

	e := &Experiment{
		cfg:     cfg,
		model:   model,
		backend: b,
		method:  method,
		y0:      y0,
		log:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Setup creates and prepares the session.
func (e *Experiment) Setup() error {
	if e.session != nil {
		return nil
	}
	binding, err := models.Bind(e.model, e.cfg.Params)
	if err != nil {
		return err
	}

	s, err := session.New(e.backend, e.method,
		session.WithLogger(e.log),
		session.WithMetrics(e.metrics),
		session.WithName(e.model.Name()),
	)
	if err != nil {
		return err
	}

	steps := []func() error{
		func() error { return s.Configure(binding, e.cfg.T0, e.y0) },
		func() error { return s.SetTolerances(e.cfg.AbsTol, e.cfg.RelTol) },
		s.Prepare,
	}
	if e.cfg.MaxSteps > 0 {
		steps = append(steps, func() error { return s.SetMaxSteps(e.cfg.MaxSteps) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return errors.Join(err, s.Destroy())
		}
	}

	e.session = s
	e.log.Info("experiment ready", "model", e.model.Name(), "backend", e.backend.Name(), "method", e.method, "dim", s.Dim())
	return nil
}

// Run integrates the scenario with its configured parameters from the
// initial condition.
func (e *Experiment) Run(ctx context.Context) (*Run, error) {
	return e.runWith(ctx, e.cfg.Params)
}

// Sweep runs every parameter set in order on the same session, each from
// the initial condition. Overrides in a set apply on top of the scenario
// parameters. An empty sets falls back to the scenario's own sweep.
func (e *Experiment) Sweep(ctx context.Context, sets []map[string]float64) ([]*Run, error) {
	if len(sets) == 0 {
		sets = e.cfg.Sweep
	}
	runs := make([]*Run, 0, len(sets))
	for i, set := range sets {
		run, err := e.runWith(ctx, merged(e.cfg.Params, set))
		if err != nil {
			return runs, fmt.Errorf("sweep %d: %w", i, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (e *Experiment) runWith(ctx context.Context, overrides map[string]float64) (*Run, error) {
	if e.session == nil {
		return nil, ErrNotSetup
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := models.Params(e.model, overrides)
	if err != nil {
		return nil, err
	}
	if err := e.session.Reset(e.cfg.T0, e.y0); err != nil {
		return nil, err
	}
	if err := e.session.BindParameters(p); err != nil {
		return nil, err
	}

	before, _ := e.session.Stats()
	start := time.Now()
	res, err := e.session.Integrate(e.cfg.OutputTimes())
	if err != nil {
		return nil, err
	}
	after, _ := e.session.Stats()

	run := &Run{
		Params:  models.ParamMap(e.model, p),
		Result:  res,
		Stats:   delta(before, after),
		Elapsed: time.Since(start),
	}
	e.log.Info("run complete", "model", e.model.Name(), "outputs", res.Len(), "steps", run.Stats.Steps, "elapsed", run.Elapsed)
	return run, nil
}

// Close destroys the session.
func (e *Experiment) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}

func (e *Experiment) Model() models.Model { return e.model }

func (e *Experiment) Method() dynamo.Method { return e.method }

func (e *Experiment) Backend() string { return e.backend.Name() }

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Session() *session.Session { return e.session }

// Distance is the largest Euclidean distance between matching outputs of
// two runs over the same output times.
func Distance(a, b *Run) (float64, error) {
	if a.Result.Len() != b.Result.Len() || a.Result.Dim() != b.Result.Dim() {
		return 0, fmt.Errorf("runs differ in shape: %dx%d vs %dx%d",
			a.Result.Len(), a.Result.Dim(), b.Result.Len(), b.Result.Dim())
	}
	d := 0.0
	for i := range a.Result.States {
		d = max(d, a.Result.States[i].Sub(b.Result.States[i]).Norm())
	}
	return d, nil
}

func merged(base, over map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}

// delta turns cumulative backend counters into per-run work.
func delta(before, after backend.Stats) backend.Stats {
	return backend.Stats{
		Steps:          after.Steps - before.Steps,
		FailedSteps:    after.FailedSteps - before.FailedSteps,
		RHSEvals:       after.RHSEvals - before.RHSEvals,
		JacobianEvals:  after.JacobianEvals - before.JacobianEvals,
		Factorizations: after.Factorizations - before.Factorizations,
		LastStep:       after.LastStep,
		CurrentTime:    after.CurrentTime,
	}
}
