package modality

import (
	"fmt"
	"sync"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

func init() {
	Register(Chat,
		func() sim.ModalityState { return NewChatState() },
		func(data map[string]any) (sim.ModalityInput, error) {
			var input ChatInput
			if err := decodeInto(data, &input); err != nil {
				return nil, err
			}
			return &input, nil
		},
	)
}

// ChatMessage is one message within a conversation.
type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatState groups messages into conversations keyed by conversation id.
type ChatState struct {
	mu            sync.Mutex
	conversations map[string][]ChatMessage
}

// NewChatState creates an empty chat state.
func NewChatState() *ChatState {
	return &ChatState{conversations: make(map[string][]ChatMessage)}
}

// ModalityType implements sim.ModalityState.
func (s *ChatState) ModalityType() string { return Chat }

// ApplyInput appends a message to its conversation.
func (s *ChatState) ApplyInput(input sim.ModalityInput) error {
	in, ok := input.(*ChatInput)
	if !ok {
		return fmt.Errorf("chat state cannot apply %T", input)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[in.ConversationID] = append(s.conversations[in.ConversationID], ChatMessage{
		Sender: in.Sender,
		Text:   in.Text,
	})
	return nil
}

// Snapshot implements sim.ModalityState.
func (s *ChatState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	conversations := make(map[string]any, len(s.conversations))
	for id, msgs := range s.conversations {
		copied := make([]ChatMessage, len(msgs))
		copy(copied, msgs)
		conversations[id] = copied
		total += len(msgs)
	}
	return map[string]any{
		"conversation_count": len(conversations),
		"message_count":      total,
		"conversations":      conversations,
	}
}

// ValidateState reports conversations that contain no messages.
func (s *ChatState) ValidateState() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var findings []string
	for id, msgs := range s.conversations {
		if len(msgs) == 0 {
			findings = append(findings, fmt.Sprintf("empty conversation %q", id))
		}
	}
	return findings
}

// Clear empties all conversations.
func (s *ChatState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[string][]ChatMessage)
}

// MessageCount returns the number of messages in one conversation.
func (s *ChatState) MessageCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations[conversationID])
}

// ChatInput appends one message to a conversation.
type ChatInput struct {
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
}

// ModalityType implements sim.ModalityInput.
func (in *ChatInput) ModalityType() string { return Chat }

// Validate implements sim.ModalityInput.
func (in *ChatInput) Validate() error {
	if in.ConversationID == "" {
		return fmt.Errorf("chat input requires a conversation_id")
	}
	if in.Sender == "" {
		return fmt.Errorf("chat input requires a sender")
	}
	if in.Text == "" {
		return fmt.Errorf("chat input requires text")
	}
	return nil
}

// Summary implements sim.ModalityInput.
func (in *ChatInput) Summary() string {
	return fmt.Sprintf("chat message from %s in %s", in.Sender, in.ConversationID)
}

// AffectedEntities returns the conversation id and sender.
func (in *ChatInput) AffectedEntities() []string {
	return []string{in.ConversationID, in.Sender}
}
