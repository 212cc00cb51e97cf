package solve

import (
	"math"
	"time"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsFinite() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is the pure evaluator of a compartmental model. Derive returns the
// state tangent dX/dt at (y, t). JacVec returns the action of the local
// linearization on v, i.e. J(y, t) * v. Both must be deterministic, free of
// observable side effects, and branch-consistent: any conditional rule inside
// the model must take the same branch in Derive and JacVec for the same
// (y, t).
type System interface {
	Dim() int
	Derive(y State, t float64) State
	JacVec(y State, t float64, v State) State
}

// EventSource is an optional capability of a System. EventValues returns one
// scalar indicator per registered event; a strict sign change between two
// consecutive accepted steps fires the event. ApplyEvent returns the
// (possibly updated) state after event i fires at time t.
type EventSource interface {
	NumEvents() int
	EventValues(y State, t float64) []float64
	ApplyEvent(i int, y State, t float64) State
}

type Config struct {
	RelTol float64
	AbsTol float64

	InitialStep float64 // 0 selects a heuristic from the span
	MinStep     float64
	MaxStep     float64 // 0 means unbounded

	MaxOrder          int // BDF order cap, 1..5
	MaxNewtonIters    int
	MaxStepRetries    int // consecutive Newton failures before the run fails
	MaxErrorTestFails int // consecutive error-test rejections before the run fails
	MaxEventRefines   int
	EventTol          float64

	// StepDeadline bounds wall time of a single accepted step. Zero disables
	// the check.
	StepDeadline time.Duration
}

func DefaultConfig() Config {
	return Config{
		RelTol:            1e-6,
		AbsTol:            1e-9,
		MinStep:           1e-12,
		MaxOrder:          5,
		MaxNewtonIters:    6,
		MaxStepRetries:    10,
		MaxErrorTestFails: 30,
		MaxEventRefines:   64,
		EventTol:          1e-8,
	}
}

type EventRecord struct {
	Index int
	Time  float64
}

// Result is the sampled trajectory on the adaptive step grid. Times is
// strictly increasing, starts at t0 and ends exactly at the requested stop
// time. States[i] is the accepted (post-event) state at Times[i].
type Result struct {
	Times  []float64
	States []State
	Events []EventRecord

	Steps       int
	Rejected    int
	NewtonIters int
}

// wrmsNorm is the weighted root-mean-square norm used for error control:
// sqrt(mean((v_i / (atol + rtol*|ref_i|))^2)). A value <= 1 means v is
// within tolerance.
func wrmsNorm(v, ref State, rtol, atol float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for i := range v {
		w := atol + rtol*math.Abs(ref[i])
		e := v[i] / w
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(v)))
}
