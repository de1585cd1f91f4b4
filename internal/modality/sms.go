package modality

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

func init() {
	Register(SMS,
		func() sim.ModalityState { return NewSMSState() },
		func(data map[string]any) (sim.ModalityInput, error) {
			var input SMSInput
			if err := decodeInto(data, &input); err != nil {
				return nil, err
			}
			return &input, nil
		},
	)
}

// SMSMessage is one text message within a thread.
type SMSMessage struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// SMSState groups messages into threads keyed by the peer number.
type SMSState struct {
	mu      sync.Mutex
	threads map[string][]SMSMessage
}

// NewSMSState creates an empty SMS state.
func NewSMSState() *SMSState {
	return &SMSState{threads: make(map[string][]SMSMessage)}
}

// ModalityType implements sim.ModalityState.
func (s *SMSState) ModalityType() string { return SMS }

// ApplyInput appends a message to the sender's thread.
func (s *SMSState) ApplyInput(input sim.ModalityInput) error {
	in, ok := input.(*SMSInput)
	if !ok {
		return fmt.Errorf("sms state cannot apply %T", input)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[in.From] = append(s.threads[in.From], SMSMessage{
		From: in.From,
		To:   in.To,
		Body: in.Body,
	})
	return nil
}

// Snapshot implements sim.ModalityState.
func (s *SMSState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	threads := make(map[string]any, len(s.threads))
	for peer, msgs := range s.threads {
		copied := make([]SMSMessage, len(msgs))
		copy(copied, msgs)
		threads[peer] = copied
		total += len(msgs)
	}
	return map[string]any{
		"thread_count":  len(threads),
		"message_count": total,
		"threads":       threads,
	}
}

// ValidateState reports threads that contain no messages.
func (s *SMSState) ValidateState() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var findings []string
	peers := make([]string, 0, len(s.threads))
	for peer := range s.threads {
		peers = append(peers, peer)
	}
	sort.Strings(peers)
	for _, peer := range peers {
		if len(s.threads[peer]) == 0 {
			findings = append(findings, fmt.Sprintf("empty thread for %q", peer))
		}
	}
	return findings
}

// Clear empties all threads.
func (s *SMSState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string][]SMSMessage)
}

// ThreadCount returns the number of distinct threads.
func (s *SMSState) ThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

// SMSInput delivers one text message.
type SMSInput struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// ModalityType implements sim.ModalityInput.
func (in *SMSInput) ModalityType() string { return SMS }

// Validate implements sim.ModalityInput.
func (in *SMSInput) Validate() error {
	if in.From == "" {
		return fmt.Errorf("sms input requires a sender number")
	}
	if in.To == "" {
		return fmt.Errorf("sms input requires a recipient number")
	}
	if in.Body == "" {
		return fmt.Errorf("sms input requires a body")
	}
	return nil
}

// Summary implements sim.ModalityInput.
func (in *SMSInput) Summary() string {
	return fmt.Sprintf("sms from %s to %s", in.From, in.To)
}

// AffectedEntities returns the sender and recipient numbers.
func (in *SMSInput) AffectedEntities() []string {
	return []string{in.From, in.To}
}
