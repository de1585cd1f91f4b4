package modality

import (
	"fmt"
	"sync"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

func init() {
	Register(Email,
		func() sim.ModalityState { return NewEmailState() },
		func(data map[string]any) (sim.ModalityInput, error) {
			var input EmailInput
			if err := decodeInto(data, &input); err != nil {
				return nil, err
			}
			return &input, nil
		},
	)
}

// EmailMessage is one delivered message in an inbox.
type EmailMessage struct {
	MessageID string   `json:"message_id"`
	From      string   `json:"from"`
	To        []string `json:"to"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Read      bool     `json:"read"`
}

// EmailState is an inbox: messages accumulate in delivery order.
type EmailState struct {
	mu    sync.Mutex
	inbox []EmailMessage
}

// NewEmailState creates an empty inbox.
func NewEmailState() *EmailState {
	return &EmailState{}
}

// ModalityType implements sim.ModalityState.
func (s *EmailState) ModalityType() string { return Email }

// ApplyInput delivers a message. Fails if the input is not an email
// input or a message with the same id was already delivered.
func (s *EmailState) ApplyInput(input sim.ModalityInput) error {
	in, ok := input.(*EmailInput)
	if !ok {
		return fmt.Errorf("email state cannot apply %T", input)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.inbox {
		if msg.MessageID == in.MessageID {
			return fmt.Errorf("message %q already delivered", in.MessageID)
		}
	}
	s.inbox = append(s.inbox, EmailMessage{
		MessageID: in.MessageID,
		From:      in.From,
		To:        append([]string(nil), in.To...),
		Subject:   in.Subject,
		Body:      in.Body,
	})
	return nil
}

// Snapshot implements sim.ModalityState.
func (s *EmailState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]EmailMessage, len(s.inbox))
	copy(messages, s.inbox)
	return map[string]any{
		"message_count": len(messages),
		"messages":      messages,
	}
}

// ValidateState reports duplicate message ids.
func (s *EmailState) ValidateState() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var findings []string
	seen := make(map[string]bool, len(s.inbox))
	for _, msg := range s.inbox {
		if seen[msg.MessageID] {
			findings = append(findings, fmt.Sprintf("duplicate message id %q", msg.MessageID))
		}
		seen[msg.MessageID] = true
	}
	return findings
}

// Clear empties the inbox.
func (s *EmailState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = nil
}

// MessageCount returns the number of delivered messages.
func (s *EmailState) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbox)
}

// EmailInput delivers one message to the inbox.
type EmailInput struct {
	MessageID string   `json:"message_id"`
	From      string   `json:"from"`
	To        []string `json:"to"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
}

// ModalityType implements sim.ModalityInput.
func (in *EmailInput) ModalityType() string { return Email }

// Validate implements sim.ModalityInput.
func (in *EmailInput) Validate() error {
	if in.MessageID == "" {
		return fmt.Errorf("email input requires a message_id")
	}
	if in.From == "" {
		return fmt.Errorf("email input requires a sender")
	}
	if len(in.To) == 0 {
		return fmt.Errorf("email input requires at least one recipient")
	}
	return nil
}

// Summary implements sim.ModalityInput.
func (in *EmailInput) Summary() string {
	return fmt.Sprintf("email from %s: %s", in.From, in.Subject)
}

// AffectedEntities returns the sender and all recipients.
func (in *EmailInput) AffectedEntities() []string {
	entities := make([]string, 0, len(in.To)+1)
	entities = append(entities, in.From)
	entities = append(entities, in.To...)
	return entities
}
