package solve

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// operator applies the Newton iteration matrix (d0*I - J) to a vector.
type operator func(v State) State

var errKrylovStall = errors.New("solve: gmres did not reach tolerance")

// gmres solves A x = b matrix-free via unrestarted Arnoldi with Givens
// rotations. Compartmental systems are small (tens of states), so the full
// Krylov basis fits comfortably and no restarting is needed. Returns the
// iterate once the relative residual drops below tol, or errKrylovStall if
// the basis is exhausted first.
func gmres(apply operator, b State, tol float64, maxIter int) (State, error) {
	n := len(b)
	x := make(State, n)

	beta := floats.Norm(b, 2)
	if beta == 0 {
		return x, nil
	}
	m := maxIter
	if m > n {
		m = n
	}

	// Krylov basis and Hessenberg column storage.
	v := make([]State, 1, m+1)
	v[0] = b.Clone()
	floats.Scale(1/beta, v[0])

	h := make([][]float64, m)
	cs := make([]float64, m)
	sn := make([]float64, m)
	g := make([]float64, m+1)
	g[0] = beta

	k := 0
	converged := false
	for j := 0; j < m; j++ {
		w := apply(v[j])
		if !w.IsFinite() {
			return nil, errNonFinite
		}

		col := make([]float64, j+2)
		for i := 0; i <= j; i++ {
			col[i] = floats.Dot(w, v[i])
			floats.AddScaled(w, -col[i], v[i])
		}
		sub := floats.Norm(w, 2)
		col[j+1] = sub

		// Apply accumulated Givens rotations to the new column.
		for i := 0; i < j; i++ {
			t := cs[i]*col[i] + sn[i]*col[i+1]
			col[i+1] = -sn[i]*col[i] + cs[i]*col[i+1]
			col[i] = t
		}
		cs[j], sn[j] = givens(col[j], col[j+1])
		col[j] = cs[j]*col[j] + sn[j]*col[j+1]
		col[j+1] = 0
		g[j+1] = -sn[j] * g[j]
		g[j] = cs[j] * g[j]

		h[j] = col
		k = j + 1

		if math.Abs(g[j+1]) <= tol*beta {
			converged = true
			break
		}
		if sub == 0 {
			// Happy breakdown: the exact solution lies in the current
			// subspace.
			converged = true
			break
		}
		if j+1 < m {
			next := w
			floats.Scale(1/sub, next)
			v = append(v, next)
		}
	}

	// Back-substitute the k x k upper-triangular least-squares system.
	y := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		s := g[i]
		for j := i + 1; j < k; j++ {
			s -= h[j][i] * y[j]
		}
		y[i] = s / h[i][i]
	}
	for i := 0; i < k; i++ {
		floats.AddScaled(x, y[i], v[i])
	}

	if !converged {
		return x, errKrylovStall
	}
	if !x.IsFinite() {
		return nil, errNonFinite
	}
	return x, nil
}

func givens(a, b float64) (c, s float64) {
	if b == 0 {
		return 1, 0
	}
	r := math.Hypot(a, b)
	return a / r, b / r
}
