package solve

import (
	"math"
	"testing"
)

func matApply(a [][]float64) operator {
	return func(v State) State {
		out := make(State, len(a))
		for i := range a {
			for j := range a[i] {
				out[i] += a[i][j] * v[j]
			}
		}
		return out
	}
}

func TestGMRESSmallSystem(t *testing.T) {
	a := [][]float64{{4, 1}, {1, 3}}
	b := State{1, 2}
	// Exact solution of the 2x2 system.
	want := State{1.0 / 11.0, 7.0 / 11.0}

	x, err := gmres(matApply(a), b, 1e-12, 2)
	if err != nil {
		t.Fatalf("gmres failed: %v", err)
	}
	for i := range want {
		if math.Abs(x[i]-want[i]) > 1e-9 {
			t.Errorf("x[%d] = %g, want %g", i, x[i], want[i])
		}
	}
}

func TestGMRESNonsymmetric(t *testing.T) {
	a := [][]float64{
		{2, -1, 0},
		{0.5, 3, -0.25},
		{0, -1, 1.5},
	}
	xTrue := State{1, -2, 0.5}
	b := matApply(a)(xTrue)

	x, err := gmres(matApply(a), b, 1e-12, 3)
	if err != nil {
		t.Fatalf("gmres failed: %v", err)
	}
	for i := range xTrue {
		if math.Abs(x[i]-xTrue[i]) > 1e-8 {
			t.Errorf("x[%d] = %g, want %g", i, x[i], xTrue[i])
		}
	}
}

func TestGMRESZeroRHS(t *testing.T) {
	a := [][]float64{{1, 0}, {0, 1}}
	x, err := gmres(matApply(a), State{0, 0}, 1e-10, 2)
	if err != nil {
		t.Fatalf("gmres failed: %v", err)
	}
	if x[0] != 0 || x[1] != 0 {
		t.Errorf("expected zero solution, got %v", x)
	}
}

func TestGMRESNonFiniteOperator(t *testing.T) {
	bad := func(v State) State {
		return State{math.NaN(), 0}
	}
	if _, err := gmres(bad, State{1, 1}, 1e-10, 2); err == nil {
		t.Error("expected error for non-finite operator")
	}
}
