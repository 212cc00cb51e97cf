package solve

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

// decay is dy/dt = lambda*y with exact solution y0*exp(lambda*t).
type decay struct{ lambda float64 }

func (d *decay) Dim() int { return 1 }

func (d *decay) Derive(y State, t float64) State {
	return State{d.lambda * y[0]}
}

func (d *decay) JacVec(y State, t float64, v State) State {
	return State{d.lambda * v[0]}
}

// stiffCosine is dy/dt = -k*(y - cos t) - sin t, which has the exact
// solution y = cos t for y0 = 1 regardless of the stiffness k.
type stiffCosine struct{ k float64 }

func (s *stiffCosine) Dim() int { return 1 }

func (s *stiffCosine) Derive(y State, t float64) State {
	return State{-s.k*(y[0]-math.Cos(t)) - math.Sin(t)}
}

func (s *stiffCosine) JacVec(y State, t float64, v State) State {
	return State{-s.k * v[0]}
}

type nanSystem struct{}

func (n *nanSystem) Dim() int                                { return 1 }
func (n *nanSystem) Derive(y State, t float64) State         { return State{math.NaN()} }
func (n *nanSystem) JacVec(y State, t float64, v State) State { return State{math.NaN()} }

func TestBDFLinearDecay(t *testing.T) {
	solver := NewBDF(DefaultConfig())
	res, err := solver.Integrate(context.Background(), &decay{lambda: -1}, State{1}, 0, 1)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	got := res.States[len(res.States)-1][0]
	want := math.Exp(-1)
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("y(1) = %g, want %g", got, want)
	}
}

func TestBDFStiffSystem(t *testing.T) {
	solver := NewBDF(DefaultConfig())
	res, err := solver.Integrate(context.Background(), &stiffCosine{k: 1e4}, State{1}, 0, 1)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	got := res.States[len(res.States)-1][0]
	want := math.Cos(1)
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("y(1) = %g, want %g", got, want)
	}
	for _, y := range res.States {
		if !y.IsFinite() {
			t.Fatal("non-finite state in trajectory")
		}
	}
}

func TestBDFTimeGrid(t *testing.T) {
	solver := NewBDF(DefaultConfig())
	res, err := solver.Integrate(context.Background(), &decay{lambda: -0.3}, State{2}, 0, 2.5)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	if res.Times[0] != 0 {
		t.Errorf("first sample time = %g, want 0", res.Times[0])
	}
	if last := res.Times[len(res.Times)-1]; last != 2.5 {
		t.Errorf("last sample time = %g, want exactly 2.5", last)
	}
	for i := 1; i < len(res.Times); i++ {
		if res.Times[i] <= res.Times[i-1] {
			t.Fatalf("sample times not strictly increasing at %d: %g <= %g", i, res.Times[i], res.Times[i-1])
		}
	}
	if len(res.Times) != len(res.States) {
		t.Errorf("times and states not parallel: %d vs %d", len(res.Times), len(res.States))
	}
}

func TestBDFDeterminism(t *testing.T) {
	run := func() *Result {
		solver := NewBDF(DefaultConfig())
		res, err := solver.Integrate(context.Background(), &stiffCosine{k: 100}, State{1}, 0, 2)
		if err != nil {
			t.Fatalf("integrate failed: %v", err)
		}
		return res
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Error("identical runs produced different results")
	}
}

func TestBDFDimensionMismatch(t *testing.T) {
	solver := NewBDF(DefaultConfig())
	_, err := solver.Integrate(context.Background(), &decay{lambda: -1}, State{1, 2}, 0, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestBDFNonFiniteSystemFails(t *testing.T) {
	solver := NewBDF(DefaultConfig())
	_, err := solver.Integrate(context.Background(), &nanSystem{}, State{1}, 0, 1)
	if err == nil {
		t.Fatal("expected failure for a system producing NaN")
	}
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Errorf("expected *RunError, got %T", err)
	}
	if !errors.Is(err, ErrNewtonDiverged) && !errors.Is(err, ErrStepTooSmall) {
		t.Errorf("expected a fatal solver condition, got %v", err)
	}
}

func TestBDFContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	solver := NewBDF(DefaultConfig())
	if _, err := solver.Integrate(ctx, &decay{lambda: -1}, State{1}, 0, 1); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestBDFStepDeadline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepDeadline = time.Nanosecond

	solver := NewBDF(cfg)
	_, err := solver.Integrate(context.Background(), &stiffCosine{k: 1e4}, State{1}, 0, 1)
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Errorf("expected ErrDeadlineExceeded, got %v", err)
	}
}

func TestBDFNoSpanReturnsInitialSample(t *testing.T) {
	solver := NewBDF(DefaultConfig())
	res, err := solver.Integrate(context.Background(), &decay{lambda: -1}, State{3}, 5, 5)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	if len(res.Times) != 1 || res.Times[0] != 5 || res.States[0][0] != 3 {
		t.Errorf("unexpected degenerate result: %+v", res)
	}
}
