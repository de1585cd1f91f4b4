package modality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliverEmail(t *testing.T, s *EmailState, id string) {
	t.Helper()
	require.NoError(t, s.ApplyInput(&EmailInput{
		MessageID: id,
		From:      "alice@example.com",
		To:        []string{"bob@example.com"},
		Subject:   "hi",
	}))
}

func TestEmailStateApply(t *testing.T) {
	s := NewEmailState()
	deliverEmail(t, s, "m-1")
	deliverEmail(t, s, "m-2")

	assert.Equal(t, 2, s.MessageCount())

	snapshot := s.Snapshot()
	assert.Equal(t, 2, snapshot["message_count"])
	messages := snapshot["messages"].([]EmailMessage)
	assert.Equal(t, "m-1", messages[0].MessageID)
	assert.False(t, messages[0].Read)
}

func TestEmailStateDuplicateMessage(t *testing.T) {
	s := NewEmailState()
	deliverEmail(t, s, "m-1")

	err := s.ApplyInput(&EmailInput{
		MessageID: "m-1",
		From:      "carol@example.com",
		To:        []string{"bob@example.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already delivered")
	assert.Equal(t, 1, s.MessageCount())
}

func TestEmailStateRejectsForeignInput(t *testing.T) {
	s := NewEmailState()
	err := s.ApplyInput(&SMSInput{From: "+1555", To: "+1666", Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot apply")
}

func TestEmailStateClear(t *testing.T) {
	s := NewEmailState()
	deliverEmail(t, s, "m-1")

	s.Clear()
	assert.Equal(t, 0, s.MessageCount())
}

func TestEmailInputValidate(t *testing.T) {
	tests := []struct {
		name  string
		input EmailInput
	}{
		{"missing id", EmailInput{From: "a@x.com", To: []string{"b@x.com"}}},
		{"missing sender", EmailInput{MessageID: "m-1", To: []string{"b@x.com"}}},
		{"no recipients", EmailInput{MessageID: "m-1", From: "a@x.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.input.Validate())
		})
	}
}

func TestEmailInputSummaryAndEntities(t *testing.T) {
	in := &EmailInput{
		MessageID: "m-1",
		From:      "alice@example.com",
		To:        []string{"bob@example.com", "carol@example.com"},
		Subject:   "quarterly report",
	}
	assert.Equal(t, "email from alice@example.com: quarterly report", in.Summary())
	assert.Equal(t,
		[]string{"alice@example.com", "bob@example.com", "carol@example.com"},
		in.AffectedEntities())
}
