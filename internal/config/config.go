package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

const (
	DefaultModel  = "exponential"
	DefaultAbsTol = 1e-8
	DefaultRelTol = 1e-8
	DefaultTEnd   = 1.0
	DefaultPoints = 4
)

var ErrInvalid = errors.New("config: invalid scenario")

// Config describes one scenario: a model, how to solve it and where to
// report the solution. Times, when set, replaces the evenly spaced grid
// built from T0, TEnd and Points.
type Config struct {
	Model     string             `yaml:"model"`
	Method    string             `yaml:"method,omitempty"`
	Backend   string             `yaml:"backend,omitempty"`
	AbsTol    float64            `yaml:"abstol"`
	RelTol    float64            `yaml:"reltol"`
	T0        float64            `yaml:"t0"`
	TEnd      float64            `yaml:"tend"`
	Points    int                `yaml:"points"`
	Times     []float64          `yaml:"times,omitempty"`
	InitState []float64          `yaml:"init_state,omitempty"`
	Params    map[string]float64 `yaml:"params,omitempty"`
	MaxSteps  int                `yaml:"max_steps,omitempty"`

	// Sweep lists parameter overrides run one after another on the same
	// session, each from the initial condition.
	Sweep []map[string]float64 `yaml:"sweep,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:  DefaultModel,
		AbsTol: DefaultAbsTol,
		RelTol: DefaultRelTol,
		TEnd:   DefaultTEnd,
		Points: DefaultPoints,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy so presets can be modified by callers.
func (c *Config) Clone() *Config {
	out := *c
	out.Times = slices.Clone(c.Times)
	out.InitState = slices.Clone(c.InitState)
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	if c.Sweep != nil {
		out.Sweep = make([]map[string]float64, len(c.Sweep))
		for i, p := range c.Sweep {
			out.Sweep[i] = make(map[string]float64, len(p))
			for k, v := range p {
				out.Sweep[i][k] = v
			}
		}
	}
	return &out
}

// ParsedMethod returns the configured method, or fallback when none is set.
func (c *Config) ParsedMethod(fallback dynamo.Method) (dynamo.Method, error) {
	if c.Method == "" {
		return fallback, nil
	}
	return dynamo.ParseMethod(c.Method)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Method != "" {
		if _, err := dynamo.ParseMethod(c.Method); err != nil {
			errs = append(errs, err)
		}
	}
	if !(dynamo.Tolerances{Abs: c.AbsTol, Rel: c.RelTol}).Valid() {
		errs = append(errs, fmt.Errorf("tolerances must be positive and finite (abstol=%g reltol=%g)", c.AbsTol, c.RelTol))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must not be negative (got %d)", c.MaxSteps))
	}

	if len(c.Times) > 0 {
		prev := c.T0
		for i, t := range c.Times {
			if math.IsNaN(t) || math.IsInf(t, 0) || t < prev {
				errs = append(errs, fmt.Errorf("times[%d]=%g must be finite, non-decreasing and not before t0", i, t))
				break
			}
			prev = t
		}
	} else {
		if !(c.TEnd > c.T0) {
			errs = append(errs, fmt.Errorf("tend (%g) must be after t0 (%g)", c.TEnd, c.T0))
		}
		if c.Points < 1 {
			errs = append(errs, fmt.Errorf("points must be at least 1 (got %d)", c.Points))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// OutputTimes returns Times when set, otherwise Points evenly spaced times
// ending exactly at TEnd.
func (c *Config) OutputTimes() []float64 {
	if len(c.Times) > 0 {
		return slices.Clone(c.Times)
	}
	if c.Points < 1 {
		return nil
	}
	out := make([]float64, c.Points)
	dt := (c.TEnd - c.T0) / float64(c.Points)
	for i := range out {
		out[i] = c.T0 + float64(i+1)*dt
	}
	out[len(out)-1] = c.TEnd
	return out
}
