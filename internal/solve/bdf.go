package solve

import (
	"context"
	"math"
	"time"
)

// Step-size limiter constants, standard for BDF codes: never grow more than
// maxScale per step, cut hard on a Newton failure, and let an error-test
// rejection follow the estimate well below the accept-path clamp — an order-1
// restart after an event can start orders of magnitude outside tolerance and
// must be able to walk the step back down in a few rejections.
const (
	safety        = 0.9
	minScale      = 0.2
	maxScale      = 5.0
	newtonFailCut = 0.25

	rejectScaleMin = 0.01
	rejectScaleMax = 0.5
)

// BDF is a variable-step, variable-order (1..5) implicit multistep solver
// for stiff systems. All mutable stepping state (current step size, order,
// history) is local to a single Integrate call, so independent runs share
// nothing.
type BDF struct {
	cfg Config
}

func NewBDF(cfg Config) *BDF {
	if cfg.MaxOrder < 1 || cfg.MaxOrder > 5 {
		cfg.MaxOrder = 5
	}
	if cfg.MaxNewtonIters <= 0 {
		cfg.MaxNewtonIters = 6
	}
	if cfg.MaxStepRetries <= 0 {
		cfg.MaxStepRetries = 10
	}
	if cfg.MaxErrorTestFails <= 0 {
		cfg.MaxErrorTestFails = 30
	}
	if cfg.MaxEventRefines <= 0 {
		cfg.MaxEventRefines = 64
	}
	if cfg.RelTol <= 0 {
		cfg.RelTol = 1e-6
	}
	if cfg.AbsTol <= 0 {
		cfg.AbsTol = 1e-9
	}
	if cfg.MinStep <= 0 {
		cfg.MinStep = 1e-12
	}
	if cfg.EventTol <= 0 {
		cfg.EventTol = 1e-8
	}
	return &BDF{cfg: cfg}
}

// Integrate advances sys from (t0, y0) to tstop and returns the trajectory
// sampled on the adaptive step grid. The last sample time equals tstop
// exactly. A state whose trial step contains non-finite values is treated as
// a Newton failure and retried with a smaller step; persistent failures
// surface as a *RunError wrapping the fatal condition.
func (b *BDF) Integrate(ctx context.Context, sys System, y0 State, t0, tstop float64) (*Result, error) {
	if len(y0) != sys.Dim() {
		return nil, &RunError{Time: t0, Wrapped: ErrDimensionMismatch}
	}
	if !y0.IsFinite() {
		return nil, &RunError{Time: t0, Wrapped: errNonFinite}
	}

	res := &Result{}
	res.Times = append(res.Times, t0)
	res.States = append(res.States, y0.Clone())
	if tstop <= t0 {
		return res, nil
	}

	es, hasEvents := sys.(EventSource)
	var prevEv []float64
	if hasEvents {
		prevEv = append([]float64(nil), es.EventValues(y0, t0)...)
	}

	hist := newHistory(b.cfg.MaxOrder + 2)
	hist.push(t0, y0)

	t := t0
	y := y0.Clone()
	h := b.initialStep(sys, y0, t0, tstop)
	k := 1      // current order
	streak := 0 // consecutive accepted steps at this order

	for t < tstop {
		select {
		case <-ctx.Done():
			return nil, &RunError{Step: res.Steps, Time: t, Wrapped: ctx.Err()}
		default:
		}
		stepStart := time.Now()

		if b.cfg.MaxStep > 0 && h > b.cfg.MaxStep {
			h = b.cfg.MaxStep
		}

		var (
			yn      State
			tn      float64
			errNorm float64
		)
		// Newton failures and error-test rejections keep separate budgets: a
		// rejection cascade after a restart is normal step-size recovery, not
		// divergence.
		newtonFails := 0
		rejects := 0
		for {
			if h < b.cfg.MinStep {
				return nil, &RunError{Step: res.Steps, Time: t, Wrapped: ErrStepTooSmall}
			}
			if tstop-t <= h {
				h = tstop - t
				tn = tstop
			} else {
				tn = t + h
			}

			if k > hist.len() {
				k = hist.len()
			}
			ts := make([]float64, k+1)
			ts[0] = tn
			copy(ts[1:], hist.times[:k])
			d := bdfWeights(ts)

			r := make(State, len(y))
			for j := 1; j <= k; j++ {
				for i := range r {
					r[i] += d[j] * hist.states[j-1][i]
				}
			}

			yp := hist.predict(tn, k+1)

			sol, iters, err := b.newtonSolve(sys, tn, d[0], r, yp)
			res.NewtonIters += iters
			if err != nil {
				newtonFails++
				if newtonFails >= b.cfg.MaxStepRetries {
					return nil, &RunError{Step: res.Steps, Time: t, Wrapped: ErrNewtonDiverged}
				}
				h *= newtonFailCut
				streak = 0
				continue
			}

			diff := make(State, len(sol))
			for i := range diff {
				diff[i] = sol[i] - yp[i]
			}
			errNorm = wrmsNorm(diff, sol, b.cfg.RelTol, b.cfg.AbsTol) / float64(k+1)

			if errNorm > 1 {
				res.Rejected++
				rejects++
				if rejects >= b.cfg.MaxErrorTestFails {
					return nil, &RunError{Step: res.Steps, Time: t, Wrapped: ErrErrorTestFailed}
				}
				streak = 0
				h *= clamp(safety*math.Pow(errNorm, -1/float64(k+1)), rejectScaleMin, rejectScaleMax)
				if rejects >= 2 && k > 1 {
					k--
				}
				continue
			}

			yn = sol
			break
		}

		res.Steps++

		if hasEvents {
			fired, tEv, yEv, err := b.processEvents(es, t, y, tn, yn, prevEv)
			if err != nil {
				return nil, &RunError{Step: res.Steps, Time: tn, Wrapped: err}
			}
			if len(fired) > 0 {
				res.Events = append(res.Events, fired...)
				t, y = tEv, yEv
				res.Times = append(res.Times, t)
				res.States = append(res.States, y.Clone())
				hist.reset(t, y)
				prevEv = append(prevEv[:0], es.EventValues(y, t)...)
				k = 1
				streak = 0
				// Step size carries over; the restart at order 1 re-probes it.
				h *= 0.5
				if b.cfg.StepDeadline > 0 && time.Since(stepStart) > b.cfg.StepDeadline {
					return nil, &RunError{Step: res.Steps, Time: t, Wrapped: ErrDeadlineExceeded}
				}
				continue
			}
			prevEv = append(prevEv[:0], es.EventValues(yn, tn)...)
		}

		t, y = tn, yn
		hist.push(t, y)
		res.Times = append(res.Times, t)
		res.States = append(res.States, y.Clone())

		streak++
		if errNorm > 0 {
			h *= clamp(safety*math.Pow(errNorm, -1/float64(k+1)), minScale, maxScale)
		} else {
			h *= maxScale
		}
		if streak >= k+2 && k < b.cfg.MaxOrder && hist.len() > k {
			k++
			streak = 0
		}

		if b.cfg.StepDeadline > 0 && time.Since(stepStart) > b.cfg.StepDeadline {
			return nil, &RunError{Step: res.Steps, Time: t, Wrapped: ErrDeadlineExceeded}
		}
	}

	return res, nil
}

// initialStep picks a first trial step from the scaled derivative at t0, so
// that the first implicit Euler step is comfortably inside tolerance.
func (b *BDF) initialStep(sys System, y0 State, t0, tstop float64) float64 {
	if b.cfg.InitialStep > 0 {
		return b.cfg.InitialStep
	}
	span := tstop - t0
	h := span / 100
	f0 := sys.Derive(y0, t0)
	if f0.IsFinite() {
		if d := wrmsNorm(f0, y0, b.cfg.RelTol, b.cfg.AbsTol); d > 0 {
			h = math.Min(0.01/d, span/10)
		}
	}
	if h < b.cfg.MinStep {
		h = b.cfg.MinStep
	}
	if b.cfg.MaxStep > 0 && h > b.cfg.MaxStep {
		h = b.cfg.MaxStep
	}
	return h
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
