package model

import (
	"github.com/san-kum/pbpksim/internal/solve"
)

// Species describes one state entry. The slice order returned by
// Model.Species is the model's canonical state layout.
type Species struct {
	ID            string
	InitialAmount float64
	Unit          string
}

// Parameter describes one named scalar constant. Required parameters have no
// usable default; a run without them fails fast before integration.
type Parameter struct {
	ID       string
	Default  float64
	Required bool
}

// Model is the capability one biological model exposes: metadata for the
// read-only describe query, and compilation of a validated parameter set
// into a pure system plus initial state. Compile must not retain or mutate
// p; the returned System carries its own bound copy of every constant.
type Model interface {
	Name() string
	Species() []Species
	Parameters() []Parameter
	FinalTime() float64
	Compile(p Params) (solve.System, solve.State, error)
}

// SafeDiv guards divisions by derived quantities that a parameter
// combination can drive to zero (a degenerate compartment volume, for
// example). The zero contribution keeps NaN/Inf out of the state tangent;
// callers must use the same guard in Derive and JacVec so both stay on the
// same branch.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
