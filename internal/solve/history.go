package solve

// history holds the most recent accepted solution points, newest first. The
// BDF weights and predictor are built from these actual times, so nonuniform
// grids need no special casing.
type history struct {
	times  []float64
	states []State
	max    int
}

func newHistory(max int) *history {
	return &history{max: max}
}

func (h *history) push(t float64, y State) {
	h.times = append([]float64{t}, h.times...)
	h.states = append([]State{y.Clone()}, h.states...)
	if len(h.times) > h.max {
		h.times = h.times[:h.max]
		h.states = h.states[:h.max]
	}
}

// reset discards all history and restarts from a single point. Called after a
// state-changing event, which invalidates the smoothness the multistep
// formula depends on.
func (h *history) reset(t float64, y State) {
	h.times = []float64{t}
	h.states = []State{y.Clone()}
}

func (h *history) len() int { return len(h.times) }

// bdfWeights returns the coefficients d of the BDF formula on the grid
// ts[0] > ts[1] > ... > ts[k] (newest first, ts[0] the trial time): the
// derivative of the interpolating polynomial at ts[0] is sum_j d[j]*y_j.
// d[j] is the derivative of the j-th Lagrange basis polynomial at ts[0].
func bdfWeights(ts []float64) []float64 {
	k := len(ts) - 1
	d := make([]float64, k+1)

	for m := 1; m <= k; m++ {
		d[0] += 1 / (ts[0] - ts[m])
	}
	for j := 1; j <= k; j++ {
		num := 1.0
		for m := 1; m <= k; m++ {
			if m == j {
				continue
			}
			num *= ts[0] - ts[m]
		}
		den := 1.0
		for m := 0; m <= k; m++ {
			if m == j {
				continue
			}
			den *= ts[j] - ts[m]
		}
		d[j] = num / den
	}
	return d
}

// predict extrapolates the polynomial through the newest npts history points
// to time t.
func (h *history) predict(t float64, npts int) State {
	if npts > len(h.times) {
		npts = len(h.times)
	}
	n := len(h.states[0])
	yp := make(State, n)
	for j := 0; j < npts; j++ {
		w := 1.0
		for m := 0; m < npts; m++ {
			if m == j {
				continue
			}
			w *= (t - h.times[m]) / (h.times[j] - h.times[m])
		}
		for i := 0; i < n; i++ {
			yp[i] += w * h.states[j][i]
		}
	}
	return yp
}
