package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/ivpsolve/internal/config"
)

// Ensemble runs independent scenarios concurrently with one session per
// goroutine. Sessions are never shared between goroutines.
type Ensemble struct {
	reg  *Registry
	cfgs []*config.Config
	opts []Option
}

func NewEnsemble(reg *Registry, cfgs []*config.Config, opts ...Option) *Ensemble {
	return &Ensemble{reg: reg, cfgs: cfgs, opts: opts}
}

// Run returns one Run per scenario in input order. Every scenario is
// attempted; failures are joined and labelled with their index.
func (e *Ensemble) Run(ctx context.Context) ([]*Run, error) {
	results := make([]*Run, len(e.cfgs))
	errs := make([]error, len(e.cfgs))

	var wg sync.WaitGroup
	for i, cfg := range e.cfgs {
		cfg := cfg
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = runOne(ctx, e.reg, cfg, e.opts)
			if errs[idx] != nil {
				errs[idx] = fmt.Errorf("scenario %d (%s): %w", idx, cfg.Model, errs[idx])
			}
		}(i)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

func runOne(ctx context.Context, reg *Registry, cfg *config.Config, opts []Option) (run *Run, err error) {
	exp, err := New(reg, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := exp.Setup(); err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, exp.Close())
	}()
	return exp.Run(ctx)
}
