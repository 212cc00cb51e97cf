package model

import (
	"fmt"
	"sort"
)

// Registry maps model names to constructors. Concrete model packages are
// wired into a registry by the caller (see run.DefaultRegistry), keeping
// this package free of cycles.
type Registry struct {
	models map[string]func() Model
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]func() Model)}
}

func (r *Registry) Register(name string, fn func() Model) {
	r.models[name] = fn
}

func (r *Registry) Get(name string) (Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
