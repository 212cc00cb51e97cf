package solve

import "math"

// processEvents checks all event indicators after an accepted step from
// (tPrev, yPrev) to (tNew, yNew). prev holds the indicator values at the
// previous accepted step. Only a strict sign change fires; an indicator
// sitting at exactly zero never does.
//
// When several indicators cross within the same step they are resolved
// sequentially in ascending index order: each crossing time is located on
// the pre-event interpolant, and the handler of a later index sees the state
// already updated by earlier handlers. Integration resumes from the latest
// located crossing time.
func (b *BDF) processEvents(es EventSource, tPrev float64, yPrev State, tNew float64, yNew State, prev []float64) ([]EventRecord, float64, State, error) {
	cur := es.EventValues(yNew, tNew)

	var fired []EventRecord
	var w State
	tR := tPrev
	for i := range cur {
		if i >= len(prev) || prev[i] == 0 || cur[i] == 0 || math.Signbit(prev[i]) == math.Signbit(cur[i]) {
			continue
		}
		tc, yc, err := b.locate(es, i, tPrev, yPrev, tNew, yNew, prev[i])
		if err != nil {
			return nil, 0, nil, err
		}
		if w == nil {
			w = yc
		}
		w = es.ApplyEvent(i, w, tc)
		if tc > tR {
			tR = tc
		}
		fired = append(fired, EventRecord{Index: i, Time: tc})
	}
	if len(fired) == 0 {
		return nil, tNew, yNew, nil
	}
	return fired, tR, w, nil
}

// locate bisects the last step for the zero crossing of indicator i, using
// linear interpolation of the state between the two accepted endpoints. The
// returned time sits on the post-crossing side of a bracket no wider than
// EventTol.
func (b *BDF) locate(es EventSource, i int, tLo float64, yLo State, tHi float64, yHi State, gLo float64) (float64, State, error) {
	lo, hi := tLo, tHi
	for n := 0; n < b.cfg.MaxEventRefines; n++ {
		if hi-lo <= b.cfg.EventTol {
			return hi, interpState(tLo, yLo, tHi, yHi, hi), nil
		}
		mid := lo + (hi-lo)/2
		gm := es.EventValues(interpState(tLo, yLo, tHi, yHi, mid), mid)[i]
		if gm == 0 {
			return mid, interpState(tLo, yLo, tHi, yHi, mid), nil
		}
		if math.Signbit(gm) == math.Signbit(gLo) {
			lo = mid
		} else {
			hi = mid
		}
	}
	if hi-lo <= b.cfg.EventTol {
		return hi, interpState(tLo, yLo, tHi, yHi, hi), nil
	}
	return 0, nil, ErrEventBracket
}

func interpState(t0 float64, y0 State, t1 float64, y1 State, t float64) State {
	if t1 == t0 {
		return y1.Clone()
	}
	a := (t - t0) / (t1 - t0)
	y := make(State, len(y0))
	for i := range y {
		y[i] = y0[i] + a*(y1[i]-y0[i])
	}
	return y
}
