package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

// DefaultName is the backend returned by Default when it is registered.
const DefaultName = "multistep"

type Backend interface {
	Name() string
	Create(method dynamo.Method) (Handle, error)
}

// Handle is one engine instance. Call order is Init, SetTolerances,
// AttachLinearSolver (stiff only), then any number of AdvanceTo/Reinit, then
// Release.
type Handle interface {
	Init(rhs dynamo.RHSFunc, t0 float64, y0 dynamo.State) error
	SetTolerances(abs, rel float64) error
	// AttachLinearSolver builds an n×n Jacobian and a dense linear solver
	// referencing it. The caller owns both and must release the solver
	// before the Jacobian.
	AttachLinearSolver(n int) (solver, jacobian Resource, err error)
	SetUserData(data any) error
	// AdvanceTo integrates forward until exactly tout and copies the reached
	// state into yout.
	AdvanceTo(tout float64, yout dynamo.State) (reached float64, err error)
	Reinit(t0 float64, y0 dynamo.State) error
	Release() error
}

type Resource interface {
	Release() error
}

// Stats mirrors the counters a multistep engine keeps between reinits.
type Stats struct {
	Steps          int     `json:"steps"`
	FailedSteps    int     `json:"failed_steps"`
	RHSEvals       int     `json:"rhs_evals"`
	JacobianEvals  int     `json:"jacobian_evals"`
	Factorizations int     `json:"factorizations"`
	LastStep       float64 `json:"last_step"`
	CurrentTime    float64 `json:"current_time"`
}

type StatsReporter interface {
	Stats() Stats
}

// StepLimiter bounds the internal steps taken for one output time.
type StepLimiter interface {
	SetMaxSteps(n int) error
}

var (
	mu       sync.RWMutex
	backends = make(map[string]Backend)
)

// Register makes a backend available by name. Registering the same name
// twice panics.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()

	if b == nil {
		panic("backend: Register backend is nil")
	}
	if _, dup := backends[b.Name()]; dup {
		panic("backend: Register called twice for " + b.Name())
	}
	backends[b.Name()] = b
}

func Get(name string) (Backend, error) {
	mu.RLock()
	defer mu.RUnlock()

	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}

// Default returns the multistep backend, or the first registered backend in
// name order when multistep is not linked in.
func Default() (Backend, error) {
	if b, err := Get(DefaultName); err == nil {
		return b, nil
	}
	names := Names()
	if len(names) == 0 {
		return nil, ErrNoBackend
	}
	return Get(names[0])
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
