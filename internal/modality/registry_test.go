package modality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{Calendar, Chat, Email, Location, SMS, Weather}, names)
}

func TestNewState(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			state, err := NewState(name)
			require.NoError(t, err)
			assert.Equal(t, name, state.ModalityType())
			assert.Empty(t, state.ValidateState())
		})
	}

	_, err := NewState("telepathy")
	require.Error(t, err)
	assert.True(t, sim.IsNotFound(err))
}

func TestNewStates(t *testing.T) {
	states, err := NewStates([]string{Email, SMS})
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, Email, states[Email].ModalityType())
	assert.Equal(t, SMS, states[SMS].ModalityType())

	// Each state is a fresh instance.
	more, err := NewStates([]string{Email})
	require.NoError(t, err)
	assert.NotSame(t, states[Email], more[Email])

	_, err = NewStates([]string{Email, "telepathy"})
	require.Error(t, err)
}

func TestParseInput(t *testing.T) {
	input, err := ParseInput(Email, map[string]any{
		"message_id": "m-1",
		"from":       "alice@example.com",
		"to":         []any{"bob@example.com"},
		"subject":    "hi",
	})
	require.NoError(t, err)

	email, ok := input.(*EmailInput)
	require.True(t, ok)
	assert.Equal(t, "m-1", email.MessageID)
	assert.Equal(t, []string{"bob@example.com"}, email.To)
}

func TestParseInputUnknownModality(t *testing.T) {
	_, err := ParseInput("telepathy", map[string]any{})
	require.Error(t, err)
	assert.True(t, sim.IsNotFound(err))
}

func TestParseInputRejectsUnknownFields(t *testing.T) {
	_, err := ParseInput(Email, map[string]any{
		"message_id": "m-1",
		"frmo":       "typo@example.com",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode payload")
}

func TestParseInputTypeMismatch(t *testing.T) {
	_, err := ParseInput(Location, map[string]any{
		"latitude": "not-a-number",
	})
	require.Error(t, err)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(Email,
			func() sim.ModalityState { return NewEmailState() },
			func(map[string]any) (sim.ModalityInput, error) { return nil, nil },
		)
	})
}
