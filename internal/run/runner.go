// Package run orchestrates simulations: it validates a parameter record
// against a model, compiles the model into a system, drives the BDF solver,
// and maps the sampled state indices back to species names.
package run

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/pbpksim/internal/model"
	"github.com/san-kum/pbpksim/internal/model/bpa"
	"github.com/san-kum/pbpksim/internal/model/talinolol"
	"github.com/san-kum/pbpksim/internal/model/twocomp"
	"github.com/san-kum/pbpksim/internal/solve"
)

// DefaultRegistry wires up all built-in models.
func DefaultRegistry() *model.Registry {
	r := model.NewRegistry()
	r.Register("talinolol", func() model.Model { return talinolol.New() })
	r.Register("bpa", func() model.Model { return bpa.New() })
	r.Register("twocomp", func() model.Model { return twocomp.New() })
	return r
}

// Input is the flat record submitted for one run.
type Input struct {
	Params    map[string]float64 `json:"params" yaml:"params"`
	Init      map[string]float64 `json:"init,omitempty" yaml:"init,omitempty"`
	FinalTime *float64           `json:"final_time,omitempty" yaml:"final_time,omitempty"`
}

// Output is the sampled trajectory. Time and every species series are
// index-aligned. A malformed input produces the same shape with empty
// arrays, so callers can distinguish "ran with zero samples" from a crash.
type Output struct {
	Time    []float64            `json:"time"`
	Species map[string][]float64 `json:"species"`
	Events  []solve.EventRecord  `json:"events,omitempty"`
}

func emptyOutput() *Output {
	return &Output{Time: []float64{}, Species: map[string][]float64{}}
}

// Runner executes simulations against a model registry with a fixed solver
// configuration. Runner carries no per-run state and is safe for concurrent
// use.
type Runner struct {
	reg *model.Registry
	cfg solve.Config
}

func NewRunner(reg *model.Registry, cfg solve.Config) *Runner {
	return &Runner{reg: reg, cfg: cfg}
}

// Run simulates modelName with in. Input errors (unknown model, missing
// required parameter, unknown name) recover locally to an empty well-formed
// output and a nil error; fatal solver conditions return a non-nil error and
// no output.
func (r *Runner) Run(ctx context.Context, modelName string, in Input) (*Output, error) {
	mdl, err := r.reg.Get(modelName)
	if err != nil {
		logrus.WithField("model", modelName).Warn("unknown model, returning empty result")
		return emptyOutput(), nil
	}

	sys, y0, err := mdl.Compile(model.Params{Values: in.Params, Init: in.Init})
	if err != nil {
		if model.IsInputError(err) {
			logrus.WithField("model", modelName).WithError(err).Warn("invalid parameter record, returning empty result")
			return emptyOutput(), nil
		}
		return nil, err
	}

	tstop := mdl.FinalTime()
	if in.FinalTime != nil {
		tstop = *in.FinalTime
	}

	solver := solve.NewBDF(r.cfg)
	res, err := solver.Integrate(ctx, sys, y0, 0, tstop)
	if err != nil {
		return nil, err
	}
	return sample(mdl, res), nil
}

// sample maps the solver's state samples onto named per-species series using
// the model's fixed index-to-name mapping.
func sample(mdl model.Model, res *solve.Result) *Output {
	species := mdl.Species()
	out := &Output{
		Time:    res.Times,
		Species: make(map[string][]float64, len(species)),
		Events:  res.Events,
	}
	for i, sp := range species {
		series := make([]float64, len(res.States))
		for j, st := range res.States {
			series[j] = st[i]
		}
		out.Species[sp.ID] = series
	}
	return out
}

// RunJSON is the JSON-in/JSON-out facade: unparsable input yields the empty
// output shape, fatal solver conditions surface as the returned error.
func (r *Runner) RunJSON(ctx context.Context, modelName string, data []byte) ([]byte, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		logrus.WithError(err).Warn("unparsable input record, returning empty result")
		return json.Marshal(emptyOutput())
	}
	out, err := r.Run(ctx, modelName, in)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// ParameterInfo and SpeciesInfo form the read-only model description.
type ParameterInfo struct {
	ID       string  `json:"id"`
	Default  float64 `json:"default"`
	Required bool    `json:"required"`
}

type SpeciesInfo struct {
	ID            string  `json:"id"`
	InitialAmount float64 `json:"initial_amount"`
	Unit          string  `json:"unit"`
}

type ModelInfo struct {
	Name       string          `json:"name"`
	FinalTime  float64         `json:"final_time"`
	Parameters []ParameterInfo `json:"parameters"`
	Species    []SpeciesInfo   `json:"species"`
}

// Describe returns the metadata of a model: every parameter with its default
// and required flag, every species with its initial amount and unit, in the
// model's canonical order.
func (r *Runner) Describe(modelName string) (*ModelInfo, error) {
	mdl, err := r.reg.Get(modelName)
	if err != nil {
		return nil, err
	}
	info := &ModelInfo{Name: mdl.Name(), FinalTime: mdl.FinalTime()}
	for _, p := range mdl.Parameters() {
		info.Parameters = append(info.Parameters, ParameterInfo{ID: p.ID, Default: p.Default, Required: p.Required})
	}
	for _, s := range mdl.Species() {
		info.Species = append(info.Species, SpeciesInfo{ID: s.ID, InitialAmount: s.InitialAmount, Unit: s.Unit})
	}
	return info, nil
}

// Defaults returns the parameter record the describe query documents: every
// parameter at its default. Required parameters have no default and are
// omitted; feeding the result of Defaults plus values for the required names
// into Run reproduces the baseline trajectory.
func (r *Runner) Defaults(modelName string) (map[string]float64, error) {
	mdl, err := r.reg.Get(modelName)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, p := range mdl.Parameters() {
		if !p.Required {
			out[p.ID] = p.Default
		}
	}
	return out, nil
}
