package modality

import (
	"fmt"
	"sync"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

func init() {
	Register(Location,
		func() sim.ModalityState { return NewLocationState() },
		func(data map[string]any) (sim.ModalityInput, error) {
			var input LocationInput
			if err := decodeInto(data, &input); err != nil {
				return nil, err
			}
			return &input, nil
		},
	)
}

// Position is one geographic fix.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
}

// LocationState tracks the current position plus the movement history.
type LocationState struct {
	mu      sync.Mutex
	current *Position
	history []Position
}

// NewLocationState creates a location state with no position.
func NewLocationState() *LocationState {
	return &LocationState{}
}

// ModalityType implements sim.ModalityState.
func (s *LocationState) ModalityType() string { return Location }

// ApplyInput moves to a new position, pushing the previous one into the
// history.
func (s *LocationState) ApplyInput(input sim.ModalityInput) error {
	in, ok := input.(*LocationInput)
	if !ok {
		return fmt.Errorf("location state cannot apply %T", input)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.history = append(s.history, *s.current)
	}
	s.current = &Position{
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Label:     in.Label,
	}
	return nil
}

// Snapshot implements sim.ModalityState.
func (s *LocationState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]Position, len(s.history))
	copy(history, s.history)
	snapshot := map[string]any{
		"history": history,
	}
	if s.current != nil {
		snapshot["current"] = *s.current
	}
	return snapshot
}

// ValidateState reports out-of-range coordinates.
func (s *LocationState) ValidateState() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var findings []string
	check := func(p Position, label string) {
		if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
			findings = append(findings, fmt.Sprintf("%s position out of range (%v, %v)",
				label, p.Latitude, p.Longitude))
		}
	}
	if s.current != nil {
		check(*s.current, "current")
	}
	for i, p := range s.history {
		check(p, fmt.Sprintf("history[%d]", i))
	}
	return findings
}

// Clear drops the current position and history.
func (s *LocationState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.history = nil
}

// Current returns the current position, or nil when none was ever set.
func (s *LocationState) Current() *Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

// LocationInput moves the tracked subject to a new position.
type LocationInput struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
}

// ModalityType implements sim.ModalityInput.
func (in *LocationInput) ModalityType() string { return Location }

// Validate implements sim.ModalityInput.
func (in *LocationInput) Validate() error {
	if in.Latitude < -90 || in.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", in.Latitude)
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", in.Longitude)
	}
	return nil
}

// Summary implements sim.ModalityInput.
func (in *LocationInput) Summary() string {
	if in.Label != "" {
		return fmt.Sprintf("move to %s (%.4f, %.4f)", in.Label, in.Latitude, in.Longitude)
	}
	return fmt.Sprintf("move to (%.4f, %.4f)", in.Latitude, in.Longitude)
}

// AffectedEntities returns the position label, if any.
func (in *LocationInput) AffectedEntities() []string {
	if in.Label == "" {
		return nil
	}
	return []string{in.Label}
}
