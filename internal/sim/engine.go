package sim

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Engine orchestrates one simulation run: it owns exactly one Clock, one
// EventQueue and one Environment, and ties them together across manual,
// event-driven and auto-advance modes.
//
// Thread-safety model:
//   - AdvanceTime, SetTime, SkipToNextEvent and Tick acquire the single
//     operation lock before touching the Environment or the queue's
//     events, serializing the auto-advance loop against manual calls.
//   - AddEvent relies on the queue's internal locking.
//   - Pause and Resume delegate straight to the Clock without the
//     operation lock; this narrow window is accepted (the clock has its
//     own mutex, and a tick racing a pause at worst completes normally).
type Engine struct {
	mu sync.Mutex

	id    string
	clock *Clock
	queue *EventQueue
	env   *Environment

	running bool
	loop    *Loop

	tickInterval time.Duration
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithTickInterval sets the auto-advance loop's tick interval.
func WithTickInterval(interval time.Duration) EngineOption {
	return func(e *Engine) {
		e.tickInterval = interval
	}
}

// WithSimulationID overrides the generated simulation id. Used by tests
// and the scenario harness for deterministic output.
func WithSimulationID(id string) EngineOption {
	return func(e *Engine) {
		e.id = id
	}
}

// NewEngine creates an engine over the given clock, environment and
// queue. The simulation id defaults to a fresh UUIDv7.
func NewEngine(clock *Clock, env *Environment, queue *EventQueue, opts ...EngineOption) *Engine {
	e := &Engine{
		id:           UUIDv7Generator{}.Generate(),
		clock:        clock,
		queue:        queue,
		env:          env,
		tickInterval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the unique simulation id.
func (e *Engine) ID() string {
	return e.id
}

// Clock returns the engine's virtual clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Environment returns the engine's environment.
func (e *Engine) Environment() *Environment {
	return e.env
}

// Queue returns the engine's event queue.
func (e *Engine) Queue() *EventQueue {
	return e.queue
}

// Running reports whether the simulation is running.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start begins a simulation run.
//
// Fails with a lifecycle error if already running, and with a validation
// error if the environment or queue is inconsistent. With autoAdvance
// set, the clock is configured with timeScale and a background loop is
// started to drive ticks; otherwise time moves only through explicit
// calls.
func (e *Engine) Start(autoAdvance bool, timeScale float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return NewLifecycleError("simulation %s is already running", e.id)
	}
	if findings := e.validateLocked(); len(findings) > 0 {
		return NewValidationError("cannot start: %s", strings.Join(findings, "; "))
	}

	if autoAdvance {
		if err := e.clock.SetScale(timeScale); err != nil {
			return err
		}
		e.clock.SetAutoAdvance(true)
		e.loop = NewLoop(e, e.tickInterval)
		if err := e.loop.Start(); err != nil {
			e.loop = nil
			return err
		}
	}

	e.running = true
	slog.Info("simulation started",
		"simulation_id", e.id,
		"auto_advance", autoAdvance,
		"time_scale", timeScale,
		"mode", e.clock.Mode(),
	)
	return nil
}

// StopSummary reports the final state of a stopped run.
type StopSummary struct {
	SimulationID string         `json:"simulation_id"`
	FinalTime    time.Time      `json:"final_time"`
	EventCounts  map[Status]int `json:"event_counts"`
}

// Stop ends the run. If an auto-advance loop is active it is signalled,
// joined with a bounded wait, and detached. Safe to call when not
// running, in which case nil is returned.
func (e *Engine) Stop() *StopSummary {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	loop := e.loop
	e.loop = nil
	e.mu.Unlock()

	// The loop's in-flight tick needs the operation lock, so the join
	// must happen without holding it.
	if loop != nil {
		loop.Stop()
		e.clock.SetAutoAdvance(false)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false

	summary := &StopSummary{
		SimulationID: e.id,
		FinalTime:    e.clock.Current(),
		EventCounts:  e.queue.Counts(),
	}
	slog.Info("simulation stopped",
		"simulation_id", e.id,
		"final_time", summary.FinalTime,
		"event_counts", summary.EventCounts,
	)
	return summary
}

// Reset returns every event to PENDING and clears execution artifacts,
// enabling replay of the same event timeline. Stops the run first if
// needed.
//
// Reset does not revert mutations already applied to modality states;
// callers wanting a pristine environment clear it explicitly.
func (e *Engine) Reset() {
	if e.Running() {
		e.Stop()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, event := range e.queue.All() {
		event.Status = StatusPending
		event.ExecutedAt = nil
		event.ErrorMessage = ""
	}
	slog.Info("simulation reset", "simulation_id", e.id, "events", e.queue.Len())
}

// ExecutionRecord reports the outcome of one event execution.
type ExecutionRecord struct {
	EventID  string `json:"event_id"`
	Modality string `json:"modality"`
	Status   Status `json:"status"`
	Summary  string `json:"summary,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AdvanceResult reports the outcome of AdvanceTime.
type AdvanceResult struct {
	NewTime  time.Time         `json:"new_time"`
	Executed int               `json:"executed"`
	Records  []ExecutionRecord `json:"records"`
}

// AdvanceTime moves virtual time forward by delta and executes all
// now-due events in order. Fails if the simulation is not running or
// delta is not strictly positive.
func (e *Engine) AdvanceTime(delta time.Duration) (*AdvanceResult, error) {
	if !e.Running() {
		return nil, NewLifecycleError("simulation is not running")
	}
	if delta <= 0 {
		return nil, NewOutOfRangeError("advance delta must be > 0, got %s", delta)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.clock.Advance(delta); err != nil {
		return nil, err
	}

	records := e.executeDueLocked()
	result := &AdvanceResult{
		NewTime:  e.clock.Current(),
		Executed: countExecuted(records),
		Records:  records,
	}
	slog.Debug("time advanced",
		"simulation_id", e.id,
		"delta", delta,
		"new_time", result.NewTime,
		"executed", result.Executed,
	)
	return result, nil
}

// SetTimeResult reports the outcome of SetTime.
type SetTimeResult struct {
	NewTime  time.Time         `json:"new_time"`
	Executed int               `json:"executed"`
	Skipped  int               `json:"skipped"`
	Records  []ExecutionRecord `json:"records"`
}

// SetTime jumps virtual time to newTime. Events pending strictly after
// the old time and at or before newTime are either executed immediately
// (executeSkipped, using the still-old virtual time context) or marked
// SKIPPED with a reason citing the jump. Fails if the simulation is not
// running or newTime is earlier than the current virtual time.
func (e *Engine) SetTime(newTime time.Time, executeSkipped bool) (*SetTimeResult, error) {
	if !e.Running() {
		return nil, NewLifecycleError("simulation is not running")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	oldTime := e.clock.Current()
	if newTime.Before(oldTime) {
		return nil, NewOutOfRangeError("cannot move time backwards: %s is before %s",
			newTime.Format(time.RFC3339), oldTime.Format(time.RFC3339))
	}

	result := &SetTimeResult{}
	for _, event := range e.queue.InRange(oldTime, newTime, StatusPending) {
		if !event.ScheduledTime.After(oldTime) {
			continue // already due before the jump, not jumped over
		}
		if executeSkipped {
			record := e.executeOneLocked(event)
			result.Records = append(result.Records, record)
			if record.Status == StatusExecuted {
				result.Executed++
			}
			continue
		}
		reason := fmt.Sprintf("skipped by time jump from %s to %s",
			oldTime.Format(time.RFC3339), newTime.Format(time.RFC3339))
		if err := event.Skip(reason); err == nil {
			result.Skipped++
		}
	}

	if err := e.clock.SetTime(newTime); err != nil {
		return nil, err
	}
	result.NewTime = newTime

	slog.Debug("time set",
		"simulation_id", e.id,
		"old_time", oldTime,
		"new_time", newTime,
		"executed", result.Executed,
		"skipped", result.Skipped,
	)
	return result, nil
}

// SkipResult reports the outcome of SkipToNextEvent.
type SkipResult struct {
	NoPending     bool              `json:"no_pending"`
	NewTime       time.Time         `json:"new_time"`
	Executed      int               `json:"executed"`
	Records       []ExecutionRecord `json:"records"`
	NextEventTime *time.Time        `json:"next_event_time,omitempty"`
}

// SkipToNextEvent jumps virtual time to the next pending event's
// scheduled time and executes everything due at that instant (possibly
// several events sharing the timestamp). With no pending events it
// reports NoPending without mutating time. Fails if the simulation is
// not running.
func (e *Engine) SkipToNextEvent() (*SkipResult, error) {
	if !e.Running() {
		return nil, NewLifecycleError("simulation is not running")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.queue.PeekNext()
	if next == nil {
		return &SkipResult{NoPending: true, NewTime: e.clock.Current()}, nil
	}

	// An overdue pending event needs no jump; the clock never moves
	// backwards.
	if next.ScheduledTime.After(e.clock.Current()) {
		if err := e.clock.SetTime(next.ScheduledTime); err != nil {
			return nil, err
		}
	}

	records := e.executeDueLocked()
	result := &SkipResult{
		NewTime:  e.clock.Current(),
		Executed: countExecuted(records),
		Records:  records,
	}
	if following := e.queue.PeekNext(); following != nil {
		t := following.ScheduledTime
		result.NextEventTime = &t
	}

	slog.Debug("skipped to next event",
		"simulation_id", e.id,
		"new_time", result.NewTime,
		"executed", result.Executed,
	)
	return result, nil
}

// Pause freezes the virtual clock. Delegates directly to the Clock.
func (e *Engine) Pause() {
	e.clock.Pause()
	slog.Debug("simulation paused", "simulation_id", e.id)
}

// Resume unfreezes the virtual clock. Delegates directly to the Clock.
func (e *Engine) Resume() {
	e.clock.Resume()
	slog.Debug("simulation resumed", "simulation_id", e.id)
}

// AddEvent validates and enqueues an event. Safe from any goroutine.
func (e *Engine) AddEvent(event *Event) error {
	if err := e.queue.Add(event); err != nil {
		return err
	}
	slog.Debug("event added",
		"simulation_id", e.id,
		"event_id", event.ID,
		"modality", event.Modality,
		"scheduled_time", event.ScheduledTime,
		"priority", event.Priority,
	)
	return nil
}

// ExecuteDueEvents executes all events due at the current virtual time,
// in queue order, and returns every outcome. Individual event failures
// are isolated on the events themselves; this method never errors
// because of them.
func (e *Engine) ExecuteDueEvents() []ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executeDueLocked()
}

// executeDueLocked executes due events. Caller holds the operation lock.
func (e *Engine) executeDueLocked() []ExecutionRecord {
	due := e.queue.Due(e.clock.Current())
	records := make([]ExecutionRecord, 0, len(due))
	for _, event := range due {
		records = append(records, e.executeOneLocked(event))
	}
	return records
}

// executeOneLocked executes a single event and records the outcome.
// Caller holds the operation lock.
func (e *Engine) executeOneLocked(event *Event) ExecutionRecord {
	record := ExecutionRecord{EventID: event.ID, Modality: event.Modality}

	if err := event.Execute(e.env); err != nil {
		// Lifecycle refusal: the event was not PENDING. Nothing mutated.
		record.Status = event.Status
		record.Error = err.Error()
		return record
	}

	record.Status = event.Status
	if event.Payload != nil {
		record.Summary = event.Payload.Summary()
	}
	if event.Status == StatusFailed {
		record.Error = event.ErrorMessage
		slog.Warn("event execution failed",
			"simulation_id", e.id,
			"event_id", event.ID,
			"modality", event.Modality,
			"error", event.ErrorMessage,
		)
	} else {
		slog.Debug("event executed",
			"simulation_id", e.id,
			"event_id", event.ID,
			"modality", event.Modality,
		)
	}
	return record
}

// Tick converts wall time elapsed since the clock's last anchor into
// virtual advancement and executes anything that became due. Intended
// only for the auto-advance loop.
func (e *Engine) Tick() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	advancement := e.clock.CalculateAdvancement(e.clock.ElapsedWall())
	if advancement <= 0 {
		return nil
	}
	if err := e.clock.Advance(advancement); err != nil {
		return fmt.Errorf("advance clock: %w", err)
	}

	records := e.executeDueLocked()
	if len(records) > 0 {
		slog.Debug("tick executed events",
			"simulation_id", e.id,
			"advancement", advancement,
			"executed", countExecuted(records),
		)
	}
	return nil
}

// Validate aggregates environment and queue findings, plus a
// cross-component check that every pending event's modality still exists.
func (e *Engine) Validate() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validateLocked()
}

func (e *Engine) validateLocked() []string {
	findings := append(e.env.Validate(), e.queue.Validate()...)
	for _, event := range e.queue.ByStatus(StatusPending) {
		if !e.env.HasModality(event.Modality) {
			findings = append(findings, fmt.Sprintf(
				"pending event %q references unknown modality %q", event.ID, event.Modality))
		}
	}
	return findings
}

// EventFilter selects events for QueryEvents. Zero-valued fields match
// everything.
type EventFilter struct {
	Status   Status
	Modality string
	AgentID  string
	Start    *time.Time
	End      *time.Time
}

// QueryEvents returns all events matching the filter, in queue order.
func (e *Engine) QueryEvents(filter EventFilter) []*Event {
	var matched []*Event
	for _, event := range e.queue.All() {
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		if filter.Modality != "" && event.Modality != filter.Modality {
			continue
		}
		if filter.AgentID != "" && event.AgentID != filter.AgentID {
			continue
		}
		if filter.Start != nil && event.ScheduledTime.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && event.ScheduledTime.After(*filter.End) {
			continue
		}
		matched = append(matched, event)
	}
	return matched
}

// GetState returns the named modality state.
func (e *Engine) GetState(name string) (ModalityState, error) {
	return e.env.GetState(name)
}

// EventPreview is a short view of an upcoming event.
type EventPreview struct {
	ID            string    `json:"id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Modality      string    `json:"modality"`
	Priority      int       `json:"priority"`
	Summary       string    `json:"summary,omitempty"`
}

// QueueSummary aggregates queue counts for snapshots.
type QueueSummary struct {
	Total     int           `json:"total"`
	Pending   int           `json:"pending"`
	Executed  int           `json:"executed"`
	Failed    int           `json:"failed"`
	NextEvent *EventPreview `json:"next_event,omitempty"`
}

// EngineSnapshot is a point-in-time view of the whole simulation.
type EngineSnapshot struct {
	SimulationID string         `json:"simulation_id"`
	Running      bool           `json:"running"`
	Mode         ClockMode      `json:"mode"`
	CurrentTime  time.Time      `json:"current_time"`
	TimeScale    float64        `json:"time_scale"`
	Environment  map[string]any `json:"environment"`
	Queue        QueueSummary   `json:"queue"`
}

// Snapshot returns engine metadata plus the environment snapshot and a
// queue summary with a preview of the next pending event.
func (e *Engine) Snapshot() *EngineSnapshot {
	counts := e.queue.Counts()
	summary := QueueSummary{
		Total:    e.queue.Len(),
		Pending:  counts[StatusPending],
		Executed: counts[StatusExecuted],
		Failed:   counts[StatusFailed],
	}
	if next := e.queue.PeekNext(); next != nil {
		preview := &EventPreview{
			ID:            next.ID,
			ScheduledTime: next.ScheduledTime,
			Modality:      next.Modality,
			Priority:      next.Priority,
		}
		if next.Payload != nil {
			preview.Summary = next.Payload.Summary()
		}
		summary.NextEvent = preview
	}

	return &EngineSnapshot{
		SimulationID: e.id,
		Running:      e.Running(),
		Mode:         e.clock.Mode(),
		CurrentTime:  e.clock.Current(),
		TimeScale:    e.clock.Scale(),
		Environment:  e.env.Snapshot(),
		Queue:        summary,
	}
}

func countExecuted(records []ExecutionRecord) int {
	executed := 0
	for _, record := range records {
		if record.Status == StatusExecuted {
			executed++
		}
	}
	return executed
}
