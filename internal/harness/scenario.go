package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a deterministic simulation run: an initial
// environment, a set of scheduled events, a script of time-control
// steps, and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario (also names golden files).
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// StartTime is the virtual time the simulation begins at (RFC3339).
	StartTime time.Time `yaml:"start_time"`

	// Modalities lists the modality states to create.
	Modalities []string `yaml:"modalities"`

	// Events are scheduled before the run starts.
	Events []ScenarioEvent `yaml:"events"`

	// Steps is the time-control script executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioEvent schedules one event relative to the scenario start.
type ScenarioEvent struct {
	// ID identifies the event; generated sequentially when empty.
	ID string `yaml:"id,omitempty"`

	// Offset is the scheduled time relative to StartTime ("90m", "2h").
	Offset string `yaml:"offset"`

	// Modality names the target modality state.
	Modality string `yaml:"modality"`

	// Priority breaks ties at equal scheduled times (higher = earlier).
	Priority int `yaml:"priority,omitempty"`

	// AgentID optionally attributes the event.
	AgentID string `yaml:"agent_id,omitempty"`

	// Payload holds the modality input fields.
	Payload map[string]any `yaml:"payload"`
}

// Step is one time-control operation. Exactly one of the operation
// fields must be set.
type Step struct {
	// Advance moves time forward by a duration ("90m").
	Advance string `yaml:"advance,omitempty"`

	// SetTime jumps to an absolute virtual time.
	SetTime *time.Time `yaml:"set_time,omitempty"`

	// ExecuteSkipped makes SetTime execute jumped-over events instead
	// of skipping them.
	ExecuteSkipped bool `yaml:"execute_skipped,omitempty"`

	// SkipNext jumps to the next pending event and executes it.
	SkipNext bool `yaml:"skip_next,omitempty"`

	// Pause / Resume flip the clock's pause state.
	Pause  bool `yaml:"pause,omitempty"`
	Resume bool `yaml:"resume,omitempty"`
}

// Assertion type constants.
const (
	AssertEventStatus = "event_status"
	AssertEventCount  = "event_count"
	AssertFinalTime   = "final_time"
	AssertStateValue  = "state_value"
)

// Assertion validates the outcome of a scenario run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// EventID selects the event for event_status.
	EventID string `yaml:"event_id,omitempty"`

	// Status is the expected status (event_status, event_count).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Time is the expected final virtual time (final_time).
	Time *time.Time `yaml:"time,omitempty"`

	// Modality and Key select a top-level snapshot entry (state_value).
	Modality string `yaml:"modality,omitempty"`
	Key      string `yaml:"key,omitempty"`

	// Value is the expected snapshot entry value (state_value),
	// compared by string rendering.
	Value any `yaml:"value,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected to catch typos; required fields are validated.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.StartTime.IsZero() {
		return fmt.Errorf("start_time is required")
	}
	if len(s.Modalities) == 0 {
		return fmt.Errorf("modalities list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, event := range s.Events {
		if event.Offset == "" {
			return fmt.Errorf("events[%d]: offset is required", i)
		}
		if _, err := time.ParseDuration(event.Offset); err != nil {
			return fmt.Errorf("events[%d]: invalid offset: %w", i, err)
		}
		if event.Modality == "" {
			return fmt.Errorf("events[%d]: modality is required", i)
		}
		if event.Payload == nil {
			return fmt.Errorf("events[%d]: payload is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	ops := 0
	if step.Advance != "" {
		if _, err := time.ParseDuration(step.Advance); err != nil {
			return fmt.Errorf("steps[%d]: invalid advance duration: %w", index, err)
		}
		ops++
	}
	if step.SetTime != nil {
		ops++
	}
	if step.SkipNext {
		ops++
	}
	if step.Pause {
		ops++
	}
	if step.Resume {
		ops++
	}
	if ops != 1 {
		return fmt.Errorf("steps[%d]: exactly one operation is required, got %d", index, ops)
	}
	if step.ExecuteSkipped && step.SetTime == nil {
		return fmt.Errorf("steps[%d]: execute_skipped requires set_time", index)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertEventStatus:
		if a.EventID == "" {
			return fmt.Errorf("assertions[%d]: event_id is required for event_status", index)
		}
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for event_status", index)
		}
	case AssertEventCount:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertFinalTime:
		if a.Time == nil {
			return fmt.Errorf("assertions[%d]: time is required for final_time", index)
		}
	case AssertStateValue:
		if a.Modality == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: modality and key are required for state_value", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
