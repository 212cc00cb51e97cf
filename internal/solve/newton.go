package solve

import (
	"gonum.org/v1/gonum/floats"
)

// Tolerances of the inner solves relative to the integration tolerance. The
// Newton iterate only needs to be somewhat tighter than the local error test,
// and the Krylov residual somewhat tighter than that.
const (
	newtonTol = 0.1
	krylovTol = 0.05
)

// newtonSolve solves the implicit BDF update equation
//
//	d0*y + r = f(t, y)
//
// for y, starting from the predictor yp. Each linear sub-problem
// (d0*I - J) dy = -G is solved matrix-free by GMRES using only JacVec.
// Returns the converged iterate and the number of iterations taken.
func (b *BDF) newtonSolve(sys System, t, d0 float64, r, yp State) (State, int, error) {
	n := len(yp)
	y := yp.Clone()

	apply := func(v State) State {
		jv := sys.JacVec(y, t, v)
		out := make(State, n)
		for i := range out {
			out[i] = d0*v[i] - jv[i]
		}
		return out
	}

	for it := 1; it <= b.cfg.MaxNewtonIters; it++ {
		f := sys.Derive(y, t)
		if !f.IsFinite() {
			return nil, it, errNonFinite
		}

		rhs := make(State, n)
		for i := range rhs {
			rhs[i] = f[i] - d0*y[i] - r[i]
		}

		dy, err := gmres(apply, rhs, krylovTol, n)
		if err != nil {
			return nil, it, err
		}
		floats.Add(y, dy)
		if !y.IsFinite() {
			return nil, it, errNonFinite
		}

		if wrmsNorm(dy, y, b.cfg.RelTol, b.cfg.AbsTol) < newtonTol {
			return y, it, nil
		}
	}
	return nil, b.cfg.MaxNewtonIters, ErrNewtonDiverged
}
