package sim

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var simStart = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// noteInput is a minimal modality input for scheduler tests.
type noteInput struct {
	Text    string
	invalid bool
}

func (in *noteInput) ModalityType() string { return "notes" }

func (in *noteInput) Validate() error {
	if in.invalid {
		return fmt.Errorf("note input marked invalid")
	}
	if in.Text == "" {
		return fmt.Errorf("note input requires text")
	}
	return nil
}

func (in *noteInput) Summary() string { return "note: " + in.Text }

func (in *noteInput) AffectedEntities() []string { return nil }

// noteState appends note texts in application order.
type noteState struct {
	notes     []string
	failApply bool
	findings  []string
}

func (s *noteState) ModalityType() string { return "notes" }

func (s *noteState) ApplyInput(input ModalityInput) error {
	in, ok := input.(*noteInput)
	if !ok {
		return fmt.Errorf("note state cannot apply %T", input)
	}
	if s.failApply {
		return fmt.Errorf("note state rejects all input")
	}
	s.notes = append(s.notes, in.Text)
	return nil
}

func (s *noteState) Snapshot() map[string]any {
	return map[string]any{
		"count": len(s.notes),
		"notes": append([]string(nil), s.notes...),
	}
}

func (s *noteState) ValidateState() []string { return s.findings }

func (s *noteState) Clear() { s.notes = nil }

// newTestEnv builds an environment with a single notes state on a
// deterministic clock.
func newTestEnv(t *testing.T) (*Environment, *Clock, *noteState) {
	t.Helper()
	wall := &fakeNow{t: simStart}
	clock := NewClock(simStart, WithNowFunc(wall.now))
	state := &noteState{}
	env, err := NewEnvironment(clock, map[string]ModalityState{"notes": state})
	require.NoError(t, err)
	return env, clock, state
}

// newNoteEvent creates a pending notes event with a deterministic
// creation time.
func newNoteEvent(id string, at time.Time, opts ...EventOption) *Event {
	base := []EventOption{WithCreatedAt(simStart)}
	return NewEvent(id, at, "notes", &noteInput{Text: id}, append(base, opts...)...)
}
