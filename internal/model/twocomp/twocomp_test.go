package twocomp

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/pbpksim/internal/model"
	"github.com/san-kum/pbpksim/internal/solve"
)

func TestMassConservation(t *testing.T) {
	m := New()
	sys, y0, err := m.Compile(model.Params{
		Values: map[string]float64{"Dose": 10, "Tdose": 1},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	solver := solve.NewBDF(solve.DefaultConfig())
	res, err := solver.Integrate(context.Background(), sys, y0, 0, m.FinalTime())
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	// Before the dose total mass is zero; after it, exactly the dose. The
	// transfer terms cancel pairwise, so any drift is solver error.
	doseTime := res.Events[0].Time
	for i, tm := range res.Times {
		total := res.States[i][iDepot] + res.States[i][iCentral] + res.States[i][iPeripheral]
		want := 0.0
		if tm >= doseTime {
			want = 10.0
		}
		if math.Abs(total-want) > 1e-4 {
			t.Fatalf("mass at t=%g is %g, want %g", tm, total, want)
		}
	}
}

func TestDoseEventFires(t *testing.T) {
	m := New()
	sys, y0, err := m.Compile(model.Params{
		Values: map[string]float64{"Dose": 5, "Tdose": 2},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	solver := solve.NewBDF(solve.DefaultConfig())
	res, err := solver.Integrate(context.Background(), sys, y0, 0, m.FinalTime())
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	if math.Abs(res.Events[0].Time-2) > 1e-6 {
		t.Errorf("dose fired at %g, want 2", res.Events[0].Time)
	}
}

func TestDoseAtStartIsInitialAssignment(t *testing.T) {
	m := New()
	sys, y0, err := m.Compile(model.Params{
		Values: map[string]float64{"Dose": 5, "Tdose": 0},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if y0[iDepot] != 5 {
		t.Errorf("depot = %g, want dose applied at start", y0[iDepot])
	}

	solver := solve.NewBDF(solve.DefaultConfig())
	res, err := solver.Integrate(context.Background(), sys, y0, 0, m.FinalTime())
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	if len(res.Events) != 0 {
		t.Errorf("start-time dose must not also fire as an event: %+v", res.Events)
	}
}

func TestNoDoseStaysAtZero(t *testing.T) {
	m := New()
	sys, y0, err := m.Compile(model.Params{})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	solver := solve.NewBDF(solve.DefaultConfig())
	res, err := solver.Integrate(context.Background(), sys, y0, 0, m.FinalTime())
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	for i := range res.Times {
		for _, v := range res.States[i] {
			if v != 0 {
				t.Fatalf("nonzero state without a dose at t=%g: %v", res.Times[i], res.States[i])
			}
		}
	}
}

func TestJacVecMatchesFiniteDifference(t *testing.T) {
	m := New()
	sys, _, err := m.Compile(model.Params{Values: map[string]float64{"Dose": 1}})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	y := solve.State{1.0, 0.5, 0.25}
	v := solve.State{0.3, -0.7, 1.1}
	eps := 1e-6

	yp := y.Clone()
	ym := y.Clone()
	for i := range y {
		yp[i] += eps * v[i]
		ym[i] -= eps * v[i]
	}
	fp := sys.Derive(yp, 0)
	fm := sys.Derive(ym, 0)
	jv := sys.JacVec(y, 0, v)
	for i := range jv {
		fd := (fp[i] - fm[i]) / (2 * eps)
		if math.Abs(jv[i]-fd) > 1e-4 {
			t.Errorf("jacvec[%d] = %g, finite difference %g", i, jv[i], fd)
		}
	}
}
