package config

import "sort"

var Presets = map[string]map[string]*Config{
	"exponential": {
		"baseline": {
			Model: "exponential", Method: "stiff", AbsTol: 1e-8, RelTol: 1e-8, TEnd: 1, Points: 4,
			InitState: []float64{1, 1}, Params: map[string]float64{"k1": 1, "k2": 2},
		},
		"swapped": {
			Model: "exponential", Method: "stiff", AbsTol: 1e-8, RelTol: 1e-8, TEnd: 1, Points: 4,
			InitState: []float64{1, 1}, Params: map[string]float64{"k1": 2, "k2": 1},
		},
		"restart": {
			Model: "exponential", Method: "stiff", AbsTol: 1e-8, RelTol: 1e-8, TEnd: 1, Points: 4,
			InitState: []float64{1, 1},
			Sweep: []map[string]float64{
				{"k1": 1, "k2": 2},
				{"k1": 2, "k2": 1},
			},
		},
	},
	"vanderpol": {
		"classic": {
			Model: "vanderpol", Method: "nonstiff", AbsTol: 1e-8, RelTol: 1e-6, TEnd: 20, Points: 200,
			InitState: []float64{2, 0}, Params: map[string]float64{"mu": 1},
		},
		"stiff": {
			Model: "vanderpol", Method: "stiff", AbsTol: 1e-6, RelTol: 1e-4, TEnd: 3000, Points: 300,
			InitState: []float64{2, 0}, Params: map[string]float64{"mu": 1000}, MaxSteps: 5000,
		},
	},
	"robertson": {
		"classic": {
			Model: "robertson", Method: "stiff", AbsTol: 1e-8, RelTol: 1e-4, TEnd: 40, Points: 40,
			InitState: []float64{1, 0, 0},
		},
		"decades": {
			Model: "robertson", Method: "stiff", AbsTol: 1e-8, RelTol: 1e-4,
			Times:     []float64{0.4, 4, 40, 400, 4000, 40000},
			InitState: []float64{1, 0, 0}, MaxSteps: 5000,
		},
	},
	"lorenz": {
		"chaos": {
			Model: "lorenz", Method: "nonstiff", AbsTol: 1e-9, RelTol: 1e-9, TEnd: 30, Points: 600,
			InitState: []float64{1, 1, 1},
		},
	},
	"pendulum": {
		"small": {
			Model: "pendulum", Method: "nonstiff", AbsTol: 1e-8, RelTol: 1e-8, TEnd: 20, Points: 200,
			InitState: []float64{0.2, 0},
		},
		"large": {
			Model: "pendulum", Method: "nonstiff", AbsTol: 1e-8, RelTol: 1e-8, TEnd: 20, Points: 200,
			InitState: []float64{2.5, 0},
		},
		"spinning": {
			Model: "pendulum", Method: "nonstiff", AbsTol: 1e-8, RelTol: 1e-8, TEnd: 30, Points: 300,
			InitState: []float64{0.1, 8},
		},
	},
	"oscillator": {
		"bounce": {
			Model: "oscillator", Method: "nonstiff", AbsTol: 1e-8, RelTol: 1e-8, TEnd: 20, Points: 200,
			InitState: []float64{2, 0},
		},
		"damping": {
			Model: "oscillator", Method: "nonstiff", AbsTol: 1e-8, RelTol: 1e-8, TEnd: 10, Points: 100,
			InitState: []float64{1, 0},
			Sweep: []map[string]float64{
				{"damping": 0.1},
				{"damping": 1},
				{"damping": 6.32},
			},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
