package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	plain := NewLifecycleError("simulation is not running")
	assert.Equal(t, "LIFECYCLE: simulation is not running", plain.Error())

	withEvent := NewValidationError("duplicate event id").withEvent("evt-1")
	assert.Equal(t, "VALIDATION: duplicate event id (event=evt-1)", withEvent.Error())

	withModality := NewNotFoundError("modality", "email")
	assert.Equal(t, `NOT_FOUND: modality "email" not found (modality=email)`, withModality.Error())
	assert.Equal(t, "email", withModality.Modality)

	// Non-modality kinds do not set the modality field.
	event := NewNotFoundError("event", "evt-1")
	assert.Empty(t, event.Modality)
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		err  error
		want func(error) bool
	}{
		{NewLifecycleError("x"), IsLifecycleError},
		{NewValidationError("x"), IsValidationError},
		{NewNotFoundError("event", "x"), IsNotFound},
		{NewOutOfRangeError("x"), IsOutOfRange},
	}

	for _, tt := range tests {
		assert.True(t, tt.want(tt.err))
		// Predicates see through wrapping.
		assert.True(t, tt.want(fmt.Errorf("context: %w", tt.err)))
	}

	assert.False(t, IsLifecycleError(nil))
	assert.False(t, IsLifecycleError(fmt.Errorf("plain error")))
	assert.False(t, IsValidationError(NewLifecycleError("x")))
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7GeneratorUnique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		assert.Len(t, id, 36)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
