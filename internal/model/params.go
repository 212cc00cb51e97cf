package model

import (
	"errors"
	"fmt"

	"github.com/san-kum/pbpksim/internal/solve"
)

// Input errors: malformed or incomplete parameter records. The runner
// recovers these locally into an empty result; they never abort a process.
var (
	ErrMissingParameter = errors.New("model: missing required parameter")
	ErrUnknownParameter = errors.New("model: unknown parameter")
	ErrUnknownSpecies   = errors.New("model: unknown species in init override")
)

// Params is the immutable input record for one run: named scalar constants
// plus optional initial-state overrides keyed by species ID.
type Params struct {
	Values map[string]float64
	Init   map[string]float64
}

// Get returns the resolved value for id, falling back to def when absent.
func (p Params) Get(id string, def float64) float64 {
	if v, ok := p.Values[id]; ok {
		return v
	}
	return def
}

// Resolve validates p against the declared parameters and returns the full
// name-to-value map: every required parameter must be present, unknown names
// are rejected, and absent optional parameters take their defaults.
func Resolve(decl []Parameter, p Params) (map[string]float64, error) {
	known := make(map[string]bool, len(decl))
	out := make(map[string]float64, len(decl))
	for _, d := range decl {
		known[d.ID] = true
		v, ok := p.Values[d.ID]
		if !ok {
			if d.Required {
				return nil, fmt.Errorf("%w: %s", ErrMissingParameter, d.ID)
			}
			v = d.Default
		}
		out[d.ID] = v
	}
	for id := range p.Values {
		if !known[id] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, id)
		}
	}
	return out, nil
}

// InitialState builds the state vector from species defaults and applies the
// optional init overrides.
func InitialState(decl []Species, init map[string]float64) (solve.State, error) {
	idx := make(map[string]int, len(decl))
	y := make(solve.State, len(decl))
	for i, s := range decl {
		idx[s.ID] = i
		y[i] = s.InitialAmount
	}
	for id, v := range init {
		i, ok := idx[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSpecies, id)
		}
		y[i] = v
	}
	return y, nil
}

// IsInputError reports whether err belongs to the recoverable input-error
// taxonomy rather than a fatal solver condition.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingParameter) ||
		errors.Is(err, ErrUnknownParameter) ||
		errors.Is(err, ErrUnknownSpecies)
}
