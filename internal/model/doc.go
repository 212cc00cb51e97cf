// Package model defines the capability a biological model exposes to the
// solver and the runner: ordered species metadata, parameter metadata with
// defaults and required flags, and compilation of a validated parameter set
// into a pure [solve.System] plus initial state.
//
// Each concrete model lives in its own subpackage and registers itself in
// the package registry:
//
//   - model/talinolol: whole-body PBPK with oral and IV dosing
//   - model/bpa: plasma kinetics with repeated-dose events
//   - model/twocomp: closed depot/central/peripheral system
//
// The species index order returned by [Model.Species] is the canonical state
// layout of the model and never changes across calls.
package model
