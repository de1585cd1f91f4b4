package sim

// ModalityState is the mutable state of one named modality (email inbox,
// chat history, current weather, ...). States are mutated exclusively by
// event execution; the core never inspects their contents beyond the
// methods below.
type ModalityState interface {
	// ModalityType returns the modality name this state serves.
	// Must equal the Environment map key the state is registered under.
	ModalityType() string

	// ApplyInput mutates the state with the given input.
	// Returns an error if the input is invalid or cannot be applied.
	ApplyInput(input ModalityInput) error

	// Snapshot returns a structured view of the current state.
	Snapshot() map[string]any

	// ValidateState returns internal consistency findings.
	// An empty slice means the state is valid.
	ValidateState() []string

	// Clear resets the state to empty.
	Clear()
}

// ModalityInput is an event payload: one mutation to apply to a
// ModalityState. Payloads are opaque to the scheduler; only the target
// modality name and validity are inspected before application.
type ModalityInput interface {
	// ModalityType returns the modality name this input targets.
	ModalityType() string

	// Validate checks the input for structural validity.
	// Returns a descriptive error when the input cannot be applied.
	Validate() error

	// Summary returns a short human-readable description of the mutation.
	Summary() string

	// AffectedEntities returns the ids of entities this input touches
	// (recipients, conversation ids, regions, ...).
	AffectedEntities() []string
}
