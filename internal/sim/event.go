package sim

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an event.
type Status string

const (
	// StatusPending is the initial state: scheduled, not yet executed.
	StatusPending Status = "PENDING"

	// StatusExecuting is the transient state while the payload is applied.
	StatusExecuting Status = "EXECUTING"

	// StatusExecuted is terminal: the payload was applied successfully.
	StatusExecuted Status = "EXECUTED"

	// StatusFailed is terminal: validation, resolution or application
	// failed. The failure is recorded on the event, never propagated.
	StatusFailed Status = "FAILED"

	// StatusSkipped is terminal: the event was jumped over by a time jump.
	StatusSkipped Status = "SKIPPED"

	// StatusCancelled is terminal: the event was explicitly cancelled.
	StatusCancelled Status = "CANCELLED"
)

// Metadata keys written by Skip and Cancel.
const (
	metaSkipReason   = "skip_reason"
	metaCancelReason = "cancel_reason"
)

// Event is a single scheduled mutation of one modality state.
//
// Legal status transitions:
//
//	PENDING → EXECUTING → EXECUTED | FAILED
//	PENDING → SKIPPED
//	PENDING | SKIPPED → CANCELLED
//
// Events are created by callers, added once to exactly one EventQueue,
// and mutated only through Execute, Skip and Cancel. Field mutation is
// serialized by the engine's operation lock; Event itself is not
// goroutine-safe.
type Event struct {
	// ID uniquely identifies the event within its queue.
	ID string

	// ScheduledTime is the virtual time at which the event becomes due.
	ScheduledTime time.Time

	// Modality names the target modality state.
	Modality string

	// Payload is the mutation to apply. Opaque to the scheduler.
	Payload ModalityInput

	// Status is the current lifecycle state.
	Status Status

	// CreatedAt orders events that tie on time and priority.
	CreatedAt time.Time

	// ExecutedAt is set exactly when the event reaches EXECUTED or FAILED.
	ExecutedAt *time.Time

	// AgentID optionally attributes the event to an agent.
	AgentID string

	// Priority breaks scheduling ties: higher executes earlier.
	Priority int

	// ErrorMessage is non-empty exactly when Status is FAILED.
	ErrorMessage string

	// Metadata carries free-form annotations (skip/cancel reasons, tags).
	Metadata map[string]string
}

// EventOption configures optional Event fields at construction.
type EventOption func(*Event)

// WithPriority sets the tie-break priority (higher = earlier).
func WithPriority(priority int) EventOption {
	return func(e *Event) {
		e.Priority = priority
	}
}

// WithAgentID attributes the event to an agent.
func WithAgentID(agentID string) EventOption {
	return func(e *Event) {
		e.AgentID = agentID
	}
}

// WithCreatedAt overrides the creation timestamp. Used by the scenario
// harness for deterministic tie-breaking.
func WithCreatedAt(createdAt time.Time) EventOption {
	return func(e *Event) {
		e.CreatedAt = createdAt
	}
}

// WithEventMetadata sets a metadata entry.
func WithEventMetadata(key, value string) EventOption {
	return func(e *Event) {
		e.Metadata[key] = value
	}
}

// NewEvent creates a PENDING event scheduled at the given virtual time.
func NewEvent(id string, scheduledTime time.Time, modality string, payload ModalityInput, opts ...EventOption) *Event {
	e := &Event{
		ID:            id,
		ScheduledTime: scheduledTime,
		Modality:      modality,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
		Metadata:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies the event's payload to its target modality state.
//
// Returns a lifecycle error if the event is not PENDING; a second Execute
// on the same event always fails and never mutates state twice.
//
// Validation, resolution and application failures are swallowed at this
// boundary: the event transitions to FAILED with ErrorMessage set and
// ExecutedAt recorded, and Execute returns nil. One bad event must never
// abort a simulation run.
func (e *Event) Execute(env *Environment) error {
	if e.Status != StatusPending {
		return NewLifecycleError("cannot execute event in status %s", e.Status).withEvent(e.ID)
	}

	e.Status = StatusExecuting

	if e.Payload == nil {
		e.fail(env, "event has no payload")
		return nil
	}
	if err := e.Payload.Validate(); err != nil {
		e.fail(env, fmt.Sprintf("payload validation failed: %v", err))
		return nil
	}

	state, err := env.GetState(e.Modality)
	if err != nil {
		e.fail(env, fmt.Sprintf("resolve modality %q: %v", e.Modality, err))
		return nil
	}

	if err := state.ApplyInput(e.Payload); err != nil {
		e.fail(env, fmt.Sprintf("apply input: %v", err))
		return nil
	}

	e.Status = StatusExecuted
	executedAt := env.CurrentTime()
	e.ExecutedAt = &executedAt
	return nil
}

// fail marks the event FAILED, recording the message and execution time.
func (e *Event) fail(env *Environment, message string) {
	e.Status = StatusFailed
	e.ErrorMessage = message
	executedAt := env.CurrentTime()
	e.ExecutedAt = &executedAt
}

// CanExecute reports whether the event could execute right now: it is
// PENDING, due at currentTime, and its payload validates.
func (e *Event) CanExecute(currentTime time.Time) bool {
	if e.Status != StatusPending {
		return false
	}
	if e.ScheduledTime.After(currentTime) {
		return false
	}
	return e.Payload != nil && e.Payload.Validate() == nil
}

// Skip marks a PENDING event SKIPPED, recording the reason in metadata.
// Fails with a lifecycle error for any other status.
func (e *Event) Skip(reason string) error {
	if e.Status != StatusPending {
		return NewLifecycleError("cannot skip event in status %s", e.Status).withEvent(e.ID)
	}
	e.Status = StatusSkipped
	e.Metadata[metaSkipReason] = reason
	return nil
}

// Cancel marks a PENDING or SKIPPED event CANCELLED, recording the reason
// in metadata. Repeat calls overwrite the reason. Fails with a lifecycle
// error once the event has begun or finished executing.
func (e *Event) Cancel(reason string) error {
	switch e.Status {
	case StatusExecuted, StatusExecuting, StatusFailed:
		return NewLifecycleError("cannot cancel event in status %s", e.Status).withEvent(e.ID)
	}
	e.Status = StatusCancelled
	e.Metadata[metaCancelReason] = reason
	return nil
}

// Validate returns structural findings for the event. An empty slice
// means the event is well-formed. Findings cover id and modality
// presence, time ordering, payload/modality agreement, payload validity,
// and the ExecutedAt/ErrorMessage consistency invariants.
func (e *Event) Validate() []string {
	var findings []string

	if e.ID == "" {
		findings = append(findings, "event id must not be empty")
	}
	if e.Modality == "" {
		findings = append(findings, "modality must not be empty")
	}
	if e.ScheduledTime.Before(e.CreatedAt) {
		findings = append(findings, fmt.Sprintf(
			"scheduled time %s is before creation time %s",
			e.ScheduledTime.Format(time.RFC3339), e.CreatedAt.Format(time.RFC3339)))
	}

	if e.Payload == nil {
		findings = append(findings, "payload must not be nil")
	} else {
		if e.Payload.ModalityType() != e.Modality {
			findings = append(findings, fmt.Sprintf(
				"payload targets modality %q but event targets %q",
				e.Payload.ModalityType(), e.Modality))
		}
		if err := e.Payload.Validate(); err != nil {
			findings = append(findings, fmt.Sprintf("payload invalid: %v", err))
		}
	}

	executedOrFailed := e.Status == StatusExecuted || e.Status == StatusFailed
	if executedOrFailed && e.ExecutedAt == nil {
		findings = append(findings, fmt.Sprintf("status %s requires ExecutedAt", e.Status))
	}
	if !executedOrFailed && e.ExecutedAt != nil {
		findings = append(findings, fmt.Sprintf("status %s forbids ExecutedAt", e.Status))
	}
	if e.Status == StatusFailed && e.ErrorMessage == "" {
		findings = append(findings, "status FAILED requires a non-empty error message")
	}
	if e.Status != StatusFailed && e.ErrorMessage != "" {
		findings = append(findings, fmt.Sprintf("status %s forbids an error message", e.Status))
	}

	return findings
}

// IsTerminal reports whether the event can no longer execute.
func (e *Event) IsTerminal() bool {
	switch e.Status {
	case StatusExecuted, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}

// withEvent attaches the event id to an Error for diagnostics.
func (err *Error) withEvent(id string) *Error {
	err.EventID = id
	return err
}
