// Package modality provides the built-in modality implementations:
// email, sms, chat, calendar, location and weather. Each modality is a
// state/input pair satisfying the sim capability interfaces, selected
// by name at runtime through the package registry.
package modality

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

// Modality names registered by this package.
const (
	Email    = "email"
	SMS      = "sms"
	Chat     = "chat"
	Calendar = "calendar"
	Location = "location"
	Weather  = "weather"
)

// StateFactory constructs an empty state for a modality.
type StateFactory func() sim.ModalityState

// InputParser constructs a typed input from decoded payload data.
type InputParser func(data map[string]any) (sim.ModalityInput, error)

type entry struct {
	state StateFactory
	input InputParser
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]entry)
)

// Register adds a modality to the registry. Panics on duplicate names or
// nil factories; registration happens once at package init time and a
// bad registration is a programming error.
func Register(name string, state StateFactory, input InputParser) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if name == "" || state == nil || input == nil {
		panic("modality: Register requires a name, a state factory and an input parser")
	}
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("modality: %q registered twice", name))
	}
	registry[name] = entry{state: state, input: input}
}

// NewState constructs an empty state for the named modality.
func NewState(name string) (sim.ModalityState, error) {
	registryMu.RLock()
	e, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, sim.NewNotFoundError("modality", name)
	}
	return e.state(), nil
}

// NewStates constructs empty states for all named modalities, keyed by
// name, ready to seed a sim.Environment.
func NewStates(names []string) (map[string]sim.ModalityState, error) {
	states := make(map[string]sim.ModalityState, len(names))
	for _, name := range names {
		state, err := NewState(name)
		if err != nil {
			return nil, err
		}
		states[name] = state
	}
	return states, nil
}

// ParseInput constructs a typed input for the named modality from
// decoded payload data (JSON body, YAML scenario, ...).
func ParseInput(name string, data map[string]any) (sim.ModalityInput, error) {
	registryMu.RLock()
	e, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, sim.NewNotFoundError("modality", name)
	}
	return e.input(data)
}

// Names returns the registered modality names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeInto maps decoded payload data onto a typed input struct via a
// JSON round-trip, rejecting unknown fields to catch payload typos.
func decodeInto(data map[string]any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return sim.NewValidationError("encode payload: %s", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return sim.NewValidationError("decode payload: %s", err)
	}
	return nil
}
