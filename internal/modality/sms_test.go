package modality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSStateThreading(t *testing.T) {
	s := NewSMSState()

	require.NoError(t, s.ApplyInput(&SMSInput{From: "+15550001111", To: "+15550009999", Body: "hey"}))
	require.NoError(t, s.ApplyInput(&SMSInput{From: "+15550001111", To: "+15550009999", Body: "you there?"}))
	require.NoError(t, s.ApplyInput(&SMSInput{From: "+15550002222", To: "+15550009999", Body: "hi"}))

	// Messages group into threads by sender.
	assert.Equal(t, 2, s.ThreadCount())

	snapshot := s.Snapshot()
	assert.Equal(t, 2, snapshot["thread_count"])
	assert.Equal(t, 3, snapshot["message_count"])

	threads := snapshot["threads"].(map[string]any)
	first := threads["+15550001111"].([]SMSMessage)
	require.Len(t, first, 2)
	assert.Equal(t, "hey", first[0].Body)
	assert.Equal(t, "you there?", first[1].Body)
}

func TestSMSStateClear(t *testing.T) {
	s := NewSMSState()
	require.NoError(t, s.ApplyInput(&SMSInput{From: "+1555", To: "+1666", Body: "x"}))

	s.Clear()
	assert.Equal(t, 0, s.ThreadCount())
}

func TestSMSInputValidate(t *testing.T) {
	tests := []struct {
		name  string
		input SMSInput
	}{
		{"missing from", SMSInput{To: "+1666", Body: "x"}},
		{"missing to", SMSInput{From: "+1555", Body: "x"}},
		{"missing body", SMSInput{From: "+1555", To: "+1666"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.input.Validate())
		})
	}

	valid := SMSInput{From: "+1555", To: "+1666", Body: "x"}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "sms from +1555 to +1666", valid.Summary())
	assert.Equal(t, []string{"+1555", "+1666"}, valid.AffectedEntities())
}
