package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/models"
)

// Registry maps model names to constructors. The dim argument sizes models
// whose dimension is free and is ignored by the rest.
type Registry struct {
	models map[string]func(dim int) models.Model
}

func NewRegistry() *Registry {
	r := &Registry{
		models: make(map[string]func(int) models.Model),
	}

	r.models["exponential"] = func(dim int) models.Model {
		if dim < 1 {
			dim = 2
		}
		return models.NewExponential(dim)
	}
	r.models["pendulum"] = func(int) models.Model { return models.NewPendulum() }
	r.models["oscillator"] = func(int) models.Model { return models.NewOscillator() }
	r.models["vanderpol"] = func(int) models.Model { return models.NewVanDerPol() }
	r.models["lorenz"] = func(int) models.Model { return models.NewLorenz() }
	r.models["robertson"] = func(int) models.Model { return models.NewRobertson() }

	return r
}

func (r *Registry) GetModel(name string, dim int) (models.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(dim), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetBackend resolves a registered backend, the default one for "".
func (r *Registry) GetBackend(name string) (backend.Backend, error) {
	if name == "" {
		return backend.Default()
	}
	return backend.Get(name)
}
