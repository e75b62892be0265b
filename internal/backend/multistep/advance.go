package multistep

import (
	"fmt"
	"math"

	"github.com/san-kum/ivpsolve/internal/backend"
	"github.com/san-kum/ivpsolve/internal/dynamo"
)

const (
	safety   = 0.9
	minScale = 0.2
	maxScale = 5.0
)

// AdvanceTo runs in normal mode: the final step is clamped so the handle
// lands on tout exactly instead of stepping past it.
func (h *Handle) AdvanceTo(tout float64, yout dynamo.State) (float64, error) {
	if err := h.usable(); err != nil {
		return 0, err
	}
	if !h.tolSet {
		return h.t, fmt.Errorf("%w: tolerances not set", backend.ErrBadInput)
	}
	if h.method == dynamo.Stiff && (h.ls == nil || h.ls.isReleased() || h.jac.isReleased()) {
		return h.t, backend.ErrNoLinearSolver
	}
	if len(yout) != h.n {
		return h.t, fmt.Errorf("%w: output length %d, system size %d", backend.ErrBadInput, len(yout), h.n)
	}
	if math.IsNaN(tout) || math.IsInf(tout, 0) {
		return h.t, fmt.Errorf("%w: output time %v", backend.ErrBadInput, tout)
	}
	if tout < h.t {
		return h.t, &backend.StepError{Time: h.t, Err: fmt.Errorf("%w: tout=%g", backend.ErrBadTarget, tout)}
	}

	if tout > h.t && h.hnext == 0 {
		h0, err := h.initialStep(tout)
		if err != nil {
			return h.t, &backend.StepError{Time: h.t, Err: err}
		}
		h.hnext = h0
	}

	attempts := 0
	for h.t < tout {
		if attempts >= h.maxSteps {
			return h.t, &backend.StepError{Time: h.t, Step: h.hnext, Err: fmt.Errorf("%w (%d steps)", backend.ErrTooMuchWork, h.maxSteps)}
		}
		attempts++

		dt := h.hnext
		last := false
		if remaining := tout - h.t; dt >= remaining || remaining-dt <= 16*epsilon*math.Abs(tout) {
			dt = remaining
			last = true
		}
		if h.t+dt == h.t {
			return h.t, &backend.StepError{Time: h.t, Step: dt, Err: backend.ErrStepUnderflow}
		}

		if err := h.stepper.attempt(h, h.t, dt, h.y, h.ynew, h.yerr); err != nil {
			return h.t, &backend.StepError{Time: h.t, Step: dt, Err: err}
		}

		errNorm := h.errorNorm(h.y, h.ynew, h.yerr)
		if !h.ynew.IsValid() {
			errNorm = math.Inf(1)
		}
		q := h.stepper.errorOrder()

		if errNorm <= 1 {
			copy(h.y, h.ynew)
			if last {
				h.t = tout
			} else {
				h.t += dt
			}
			h.stats.Steps++
			h.stats.LastStep = dt

			scale := maxScale
			if errNorm > 0 {
				scale = math.Min(maxScale, math.Max(minScale, safety*math.Pow(errNorm, -1/q)))
			}
			next := dt * scale
			if last {
				// a clamped final step says nothing about the natural step size
				next = math.Max(next, h.hnext)
			}
			h.hnext = next
		} else {
			h.stats.FailedSteps++
			scale := minScale
			if !math.IsInf(errNorm, 1) && !math.IsNaN(errNorm) {
				scale = math.Max(minScale, safety*math.Pow(errNorm, -1/q))
			}
			h.hnext = dt * scale
		}
	}

	h.stats.CurrentTime = h.t
	copy(yout, h.y)
	return h.t, nil
}

const epsilon = 2.220446049250313e-16

// errorNorm is the weighted RMS norm of yerr with weights abs + rel*max(|y|,|ynew|).
func (h *Handle) errorNorm(y, ynew, yerr dynamo.State) float64 {
	sum := 0.0
	for i := range yerr {
		w := h.abs + h.rel*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
		r := yerr[i] / w
		sum += r * r
	}
	norm := math.Sqrt(sum / float64(len(yerr)))
	if math.IsNaN(norm) {
		return math.Inf(1)
	}
	return norm
}

func (h *Handle) weightedNorm(v, ref dynamo.State) float64 {
	sum := 0.0
	for i := range v {
		w := h.abs + h.rel*math.Abs(ref[i])
		r := v[i] / w
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(v)))
}

func (h *Handle) initialStep(tout float64) (float64, error) {
	if err := h.eval(h.t, h.y, h.fwork); err != nil {
		return 0, err
	}
	d0 := h.weightedNorm(h.y, h.y)
	d1 := h.weightedNorm(h.fwork, h.y)

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	if span := tout - h.t; h0 > span {
		h0 = span
	}
	return h0, nil
}
