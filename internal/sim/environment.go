package sim

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Environment is the container of modality states for one simulation.
//
// Each entry maps a modality name to its mutable state; the invariant
// that the state's reported modality type equals its map key is enforced
// at construction and on every AddModality.
//
// States are mutated in place by event execution. Structural mutation
// (adding/removing modalities) happens only through engine-level
// operations holding the operation lock; the internal mutex additionally
// protects concurrent readers (snapshots, lookups) against those
// mutations.
type Environment struct {
	mu     sync.RWMutex
	states map[string]ModalityState
	clock  *Clock
}

// NewEnvironment creates an environment over the given initial states.
// Fails if any state's declared modality type differs from its map key.
func NewEnvironment(clock *Clock, states map[string]ModalityState) (*Environment, error) {
	for name, state := range states {
		if state == nil {
			return nil, NewValidationError("modality %q has a nil state", name)
		}
		if state.ModalityType() != name {
			return nil, NewValidationError(
				"modality %q registered under key %q", state.ModalityType(), name)
		}
	}

	copied := make(map[string]ModalityState, len(states))
	for name, state := range states {
		copied[name] = state
	}
	return &Environment{states: copied, clock: clock}, nil
}

// CurrentTime returns the simulation's current virtual time.
func (env *Environment) CurrentTime() time.Time {
	return env.clock.Current()
}

// GetState returns the state for the named modality.
// Fails with a not-found error if the modality does not exist.
func (env *Environment) GetState(name string) (ModalityState, error) {
	env.mu.RLock()
	defer env.mu.RUnlock()

	state, ok := env.states[name]
	if !ok {
		return nil, NewNotFoundError("modality", name)
	}
	return state, nil
}

// HasModality reports whether the named modality exists.
func (env *Environment) HasModality(name string) bool {
	env.mu.RLock()
	defer env.mu.RUnlock()
	_, ok := env.states[name]
	return ok
}

// ListModalities returns the registered modality names, sorted.
func (env *Environment) ListModalities() []string {
	env.mu.RLock()
	defer env.mu.RUnlock()

	names := make([]string, 0, len(env.states))
	for name := range env.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddModality registers a new modality state. Fails if the name is taken
// or the state's declared type mismatches the name.
func (env *Environment) AddModality(name string, state ModalityState) error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if _, exists := env.states[name]; exists {
		return NewValidationError("modality %q already exists", name)
	}
	if state == nil {
		return NewValidationError("modality %q has a nil state", name)
	}
	if state.ModalityType() != name {
		return NewValidationError(
			"modality %q registered under key %q", state.ModalityType(), name)
	}

	env.states[name] = state
	return nil
}

// RemoveModality deletes a modality state. Fails with a not-found error
// if absent. Pending events referencing the removed modality surface as
// consistency findings via the engine's Validate, not as errors here.
func (env *Environment) RemoveModality(name string) error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if _, exists := env.states[name]; !exists {
		return NewNotFoundError("modality", name)
	}
	delete(env.states, name)
	return nil
}

// ClearAllStates resets every modality state to empty. The timestamp
// records when, in virtual time, the wipe happened.
func (env *Environment) ClearAllStates(timestamp time.Time) {
	env.mu.Lock()
	defer env.mu.Unlock()

	for name, state := range env.states {
		state.Clear()
		slog.Debug("modality state cleared", "modality", name, "time", timestamp)
	}
}

// Snapshot returns a structured view of the whole environment: the
// current virtual time plus each modality's own snapshot.
func (env *Environment) Snapshot() map[string]any {
	env.mu.RLock()
	defer env.mu.RUnlock()

	modalities := make(map[string]any, len(env.states))
	for name, state := range env.states {
		modalities[name] = state.Snapshot()
	}
	return map[string]any{
		"time":       env.clock.Current(),
		"modalities": modalities,
	}
}

// Validate checks the key/type invariant for every entry and aggregates
// each state's own findings. An empty slice means the environment is
// consistent.
func (env *Environment) Validate() []string {
	env.mu.RLock()
	defer env.mu.RUnlock()

	var findings []string
	for name, state := range env.states {
		if state.ModalityType() != name {
			findings = append(findings, fmt.Sprintf(
				"modality %q reports type %q", name, state.ModalityType()))
		}
		for _, finding := range state.ValidateState() {
			findings = append(findings, fmt.Sprintf("modality %q: %s", name, finding))
		}
	}
	return findings
}
