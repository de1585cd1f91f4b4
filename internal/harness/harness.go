// Package harness runs declarative simulation scenarios and checks
// their outcomes. Scenarios are YAML files describing an initial
// environment, scheduled events, a script of time-control steps, and
// assertions; runs are fully deterministic (fake wall clock, sequential
// ids), so the same scenario always produces the same trace, which
// golden files then pin down.
package harness

import (
	"fmt"
	"time"

	"github.com/JBoggsy/ues-sub000/internal/modality"
	"github.com/JBoggsy/ues-sub000/internal/sim"
	"github.com/JBoggsy/ues-sub000/internal/testutil"
)

// TraceEntry records one step's outcome for golden comparison.
type TraceEntry struct {
	Step    int                   `json:"step"`
	Op      string                `json:"op"`
	Time    string                `json:"time"`
	Records []sim.ExecutionRecord `json:"records,omitempty"`
	Skipped int                   `json:"skipped,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	ScenarioName string         `json:"scenario_name"`
	FinalTime    time.Time      `json:"final_time"`
	Trace        []TraceEntry   `json:"trace"`
	Snapshot     map[string]any `json:"snapshot"`
	Errors       []string       `json:"errors,omitempty"`

	engine *sim.Engine
}

// Passed reports whether all assertions held.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

// Engine exposes the engine for extra checks after a run.
func (r *Result) Engine() *sim.Engine {
	return r.engine
}

// AddError records an assertion failure.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Run executes a scenario against a fresh, deterministic engine and
// evaluates its assertions. Returns an error only for scenario-level
// failures (bad payloads, engine refusing to start); assertion failures
// land in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	wall := testutil.NewFakeWallClock(scenario.StartTime)
	clock := sim.NewClock(scenario.StartTime, sim.WithNowFunc(wall.Now))

	states, err := modality.NewStates(scenario.Modalities)
	if err != nil {
		return nil, fmt.Errorf("create modality states: %w", err)
	}
	env, err := sim.NewEnvironment(clock, states)
	if err != nil {
		return nil, fmt.Errorf("create environment: %w", err)
	}

	queue := sim.NewEventQueue()
	engine := sim.NewEngine(clock, env, queue,
		sim.WithSimulationID("scenario-"+scenario.Name))

	ids := testutil.NewSequenceIDGenerator("evt")
	for i, spec := range scenario.Events {
		event, err := buildEvent(scenario, ids, spec)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		if err := engine.AddEvent(event); err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
	}

	if err := engine.Start(false, 1.0); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	defer engine.Stop()

	result := &Result{ScenarioName: scenario.Name, engine: engine}
	for i, step := range scenario.Steps {
		entry, err := executeStep(engine, i, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Trace = append(result.Trace, entry)
	}

	result.FinalTime = clock.Current()
	result.Snapshot = env.Snapshot()

	evaluateAssertions(result, scenario.Assertions)
	return result, nil
}

// buildEvent turns a scenario event spec into a sim event. All events
// share the scenario start as creation time, so declaration order is
// the final tie-break at equal time and priority.
func buildEvent(scenario *Scenario, ids *testutil.SequenceIDGenerator, spec ScenarioEvent) (*sim.Event, error) {
	offset, err := time.ParseDuration(spec.Offset)
	if err != nil {
		return nil, fmt.Errorf("invalid offset: %w", err)
	}

	payload, err := modality.ParseInput(spec.Modality, spec.Payload)
	if err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}

	id := spec.ID
	if id == "" {
		id = ids.Generate()
	}

	return sim.NewEvent(id, scenario.StartTime.Add(offset), spec.Modality, payload,
		sim.WithPriority(spec.Priority),
		sim.WithAgentID(spec.AgentID),
		sim.WithCreatedAt(scenario.StartTime),
	), nil
}

// executeStep applies one time-control operation and records the trace.
func executeStep(engine *sim.Engine, index int, step Step) (TraceEntry, error) {
	entry := TraceEntry{Step: index}

	switch {
	case step.Advance != "":
		delta, err := time.ParseDuration(step.Advance)
		if err != nil {
			return entry, err
		}
		entry.Op = fmt.Sprintf("advance %s", step.Advance)
		result, err := engine.AdvanceTime(delta)
		if err != nil {
			return entry, err
		}
		entry.Records = result.Records

	case step.SetTime != nil:
		entry.Op = fmt.Sprintf("set_time %s execute_skipped=%t",
			step.SetTime.Format(time.RFC3339), step.ExecuteSkipped)
		result, err := engine.SetTime(*step.SetTime, step.ExecuteSkipped)
		if err != nil {
			return entry, err
		}
		entry.Records = result.Records
		entry.Skipped = result.Skipped

	case step.SkipNext:
		entry.Op = "skip_next"
		result, err := engine.SkipToNextEvent()
		if err != nil {
			return entry, err
		}
		if result.NoPending {
			entry.Op = "skip_next (no pending events)"
		}
		entry.Records = result.Records

	case step.Pause:
		entry.Op = "pause"
		engine.Pause()

	case step.Resume:
		entry.Op = "resume"
		engine.Resume()

	default:
		return entry, fmt.Errorf("step has no operation")
	}

	entry.Time = engine.Clock().Current().UTC().Format(time.RFC3339Nano)
	return entry, nil
}

// evaluateAssertions checks each assertion and records failures on the
// result.
func evaluateAssertions(result *Result, assertions []Assertion) {
	for i, a := range assertions {
		switch a.Type {
		case AssertEventStatus:
			event := result.engine.Queue().Get(a.EventID)
			if event == nil {
				result.AddError("assertions[%d]: event %q not found", i, a.EventID)
				continue
			}
			if string(event.Status) != a.Status {
				result.AddError("assertions[%d]: event %q has status %s, want %s",
					i, a.EventID, event.Status, a.Status)
			}

		case AssertEventCount:
			got := len(result.engine.Queue().ByStatus(sim.Status(a.Status)))
			if got != a.Count {
				result.AddError("assertions[%d]: %d events with status %s, want %d",
					i, got, a.Status, a.Count)
			}

		case AssertFinalTime:
			if !result.FinalTime.Equal(*a.Time) {
				result.AddError("assertions[%d]: final time %s, want %s",
					i, result.FinalTime.Format(time.RFC3339), a.Time.Format(time.RFC3339))
			}

		case AssertStateValue:
			value, err := snapshotValue(result.Snapshot, a.Modality, a.Key)
			if err != nil {
				result.AddError("assertions[%d]: %v", i, err)
				continue
			}
			if fmt.Sprint(value) != fmt.Sprint(a.Value) {
				result.AddError("assertions[%d]: %s.%s = %v, want %v",
					i, a.Modality, a.Key, value, a.Value)
			}
		}
	}
}

// snapshotValue digs a top-level key out of one modality's snapshot.
func snapshotValue(snapshot map[string]any, modalityName, key string) (any, error) {
	modalities, ok := snapshot["modalities"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("snapshot has no modalities")
	}
	state, ok := modalities[modalityName].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("snapshot has no modality %q", modalityName)
	}
	value, ok := state[key]
	if !ok {
		return nil, fmt.Errorf("modality %q snapshot has no key %q", modalityName, key)
	}
	return value, nil
}
