package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/san-kum/ivpsolve/internal/config"
	"github.com/san-kum/ivpsolve/internal/experiment"
	"github.com/san-kum/ivpsolve/internal/metrics"
	"github.com/san-kum/ivpsolve/internal/storage"
)

// resolveConfig layers the scenario: defaults, then preset, then config
// file, then flags the user actually set.
func resolveConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Model = model

	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if loaded.Model != "" && loaded.Model != model {
			return nil, fmt.Errorf("config file is for model %s, not %s", loaded.Model, model)
		}
		cfg = loaded
		cfg.Model = model
	}

	flags := cmd.Flags()
	if flags.Changed("method") {
		cfg.Method = method
	}
	if flags.Changed("backend") {
		cfg.Backend = backendName
	}
	if flags.Changed("abstol") {
		cfg.AbsTol = absTol
	}
	if flags.Changed("reltol") {
		cfg.RelTol = relTol
	}
	if flags.Changed("t0") {
		cfg.T0 = t0
	}
	if flags.Changed("tend") {
		cfg.TEnd = tEnd
		cfg.Times = nil
	}
	if flags.Changed("points") {
		cfg.Points = points
		cfg.Times = nil
	}
	if flags.Changed("init") {
		cfg.InitState = initState
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if flags.Changed("param") {
		overrides, err := parseParams(params)
		if err != nil {
			return nil, err
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(overrides))
		}
		for k, v := range overrides {
			cfg.Params[k] = v
		}
	}

	return cfg, cfg.Validate()
}

// parseParams reads k=v pairs; each entry may hold several separated by
// commas.
func parseParams(entries []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, entry := range entries {
		for _, pair := range strings.Split(entry, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			k, v, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return nil, fmt.Errorf("invalid parameter %q (want k=v)", pair)
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid parameter %q: %w", pair, err)
			}
			out[strings.TrimSpace(k)] = f
		}
	}
	return out, nil
}

// parseGrid reads k=v1:v2:... specs into a grid.
func parseGrid(specs []string) (*experiment.Grid, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		k, vs, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid grid %q (want k=v1:v2:...)", spec)
		}
		var values []float64
		for _, v := range strings.Split(vs, ":") {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid grid %q: %w", spec, err)
			}
			values = append(values, f)
		}
		names = append(names, strings.TrimSpace(k))
		ranges = append(ranges, values)
	}
	return experiment.NewGrid(names, ranges)
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	exp, err := experiment.New(experiment.NewRegistry(), cfg, experiment.WithLogger(log), experiment.WithMetrics(rec))
	if err != nil {
		return err
	}
	if err := exp.Setup(); err != nil {
		return err
	}

	fmt.Printf("solving %s (%s, %s backend)...\n", cfg.Model, exp.Method(), exp.Backend())
	run, runErr := exp.Run(context.Background())
	err = errors.Join(runErr, exp.Close())
	if dumpMetrics {
		err = errors.Join(err, writeMetrics(reg))
	}
	if runErr != nil {
		return err
	}

	runID, saveErr := save(exp, cfg, run)
	printRun(run, runID)
	return errors.Join(err, saveErr)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if len(sweepSets) > 0 {
		cfg.Sweep = nil
		for _, s := range sweepSets {
			set, err := parseParams([]string{s})
			if err != nil {
				return err
			}
			cfg.Sweep = append(cfg.Sweep, set)
		}
	}
	if len(gridSpecs) > 0 {
		grid, err := parseGrid(gridSpecs)
		if err != nil {
			return err
		}
		cfg.Sweep = append(cfg.Sweep, grid.Sets()...)
	}
	if len(cfg.Sweep) == 0 {
		return fmt.Errorf("no parameter sets: pass --set or use a preset with a sweep (%v)", config.ListPresets(args[0]))
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}
	opts := []experiment.Option{experiment.WithLogger(log), experiment.WithMetrics(rec)}

	var runs []*experiment.Run
	exp, err := experiment.New(experiment.NewRegistry(), cfg, opts...)
	if err != nil {
		return err
	}

	if parallel {
		cfgs := make([]*config.Config, len(cfg.Sweep))
		for i, set := range cfg.Sweep {
			c := cfg.Clone()
			c.Sweep = nil
			if c.Params == nil {
				c.Params = make(map[string]float64, len(set))
			}
			for k, v := range set {
				c.Params[k] = v
			}
			cfgs[i] = c
		}
		fmt.Printf("solving %s for %d parameter sets in parallel...\n", cfg.Model, len(cfgs))
		runs, err = experiment.NewEnsemble(experiment.NewRegistry(), cfgs, opts...).Run(context.Background())
	} else {
		if err := exp.Setup(); err != nil {
			return err
		}
		fmt.Printf("solving %s for %d parameter sets on one %s session...\n", cfg.Model, len(cfg.Sweep), exp.Method())
		runs, err = exp.Sweep(context.Background(), nil)
		err = errors.Join(err, exp.Close())
	}
	if dumpMetrics {
		err = errors.Join(err, writeMetrics(reg))
	}

	for i, run := range runs {
		fmt.Println()
		fmt.Println(heading.Render(fmt.Sprintf("set %d", i)))
		runID, saveErr := save(exp, cfg, run)
		printRun(run, runID)
		if i > 0 {
			if d, derr := experiment.Distance(runs[0], run); derr == nil {
				field("vs set 0", fmt.Sprintf("%.6g", d))
			}
		}
		err = errors.Join(err, saveErr)
	}
	return err
}

func save(exp *experiment.Experiment, cfg *config.Config, run *experiment.Run) (string, error) {
	if noSave || run == nil {
		return "", nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	y0 := cfg.InitState
	if len(y0) == 0 {
		y0 = exp.Model().DefaultState()
	}
	return st.Save(storage.RunMetadata{
		Model:     cfg.Model,
		Backend:   exp.Backend(),
		Method:    exp.Method().String(),
		AbsTol:    cfg.AbsTol,
		RelTol:    cfg.RelTol,
		T0:        cfg.T0,
		InitState: y0,
		Params:    run.Params,
		Stats:     run.Stats,
		ElapsedMS: float64(run.Elapsed.Microseconds()) / 1000,
	}, run.Result)
}

func printRun(run *experiment.Run, runID string) {
	field("params", run.Params)
	field("outputs", run.Result.Len())
	field("steps", fmt.Sprintf("%d (%d rejected)", run.Stats.Steps, run.Stats.FailedSteps))
	field("rhs evals", run.Stats.RHSEvals)
	if run.Stats.Factorizations > 0 {
		field("jacobians", run.Stats.JacobianEvals)
		field("lu factors", run.Stats.Factorizations)
	}
	field("elapsed", run.Elapsed)
	if n := run.Result.Len(); n > 0 {
		field(fmt.Sprintf("y(%g)", run.Result.Times[n-1]), formatState(run.Result.States[n-1]))
	}
	if runID != "" {
		fmt.Printf("%s %s\n", label.Render(fmt.Sprintf("%-12s", "run id:")), good.Render(runID))
	}
}

func writeMetrics(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			return err
		}
	}
	return nil
}
