package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEngine wires an engine over a fake wall clock and a single notes
// state. The returned engine is already started in manual mode.
type testEngine struct {
	engine *Engine
	clock  *Clock
	wall   *fakeNow
	state  *noteState
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	wall := &fakeNow{t: simStart}
	clock := NewClock(simStart, WithNowFunc(wall.now))
	state := &noteState{}
	env, err := NewEnvironment(clock, map[string]ModalityState{"notes": state})
	require.NoError(t, err)

	engine := NewEngine(clock, env, NewEventQueue(), WithSimulationID("sim-test"))
	require.NoError(t, engine.Start(false, 1.0))
	t.Cleanup(func() { engine.Stop() })

	return &testEngine{engine: engine, clock: clock, wall: wall, state: state}
}

func TestEngineStartStop(t *testing.T) {
	wall := &fakeNow{t: simStart}
	clock := NewClock(simStart, WithNowFunc(wall.now))
	env, err := NewEnvironment(clock, map[string]ModalityState{"notes": &noteState{}})
	require.NoError(t, err)
	engine := NewEngine(clock, env, NewEventQueue(), WithSimulationID("sim-lifecycle"))

	assert.False(t, engine.Running())
	require.NoError(t, engine.Start(false, 1.0))
	assert.True(t, engine.Running())

	err = engine.Start(false, 1.0)
	require.Error(t, err)
	assert.True(t, IsLifecycleError(err))

	summary := engine.Stop()
	require.NotNil(t, summary)
	assert.Equal(t, "sim-lifecycle", summary.SimulationID)
	assert.False(t, engine.Running())

	// Stopping again is a no-op.
	assert.Nil(t, engine.Stop())
}

func TestEngineStartRejectsInconsistentState(t *testing.T) {
	wall := &fakeNow{t: simStart}
	clock := NewClock(simStart, WithNowFunc(wall.now))
	env, err := NewEnvironment(clock, map[string]ModalityState{"notes": &noteState{}})
	require.NoError(t, err)
	engine := NewEngine(clock, env, NewEventQueue())

	// A pending event referencing a missing modality blocks startup.
	orphan := NewEvent("orphan", simStart.Add(time.Hour), "email",
		&noteInput{Text: "x"}, WithCreatedAt(simStart))
	orphan.Modality = "notes" // passes queue validation
	require.NoError(t, engine.AddEvent(orphan))
	orphan.Modality = "email"

	err = engine.Start(false, 1.0)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestEngineOperationsRequireRunning(t *testing.T) {
	wall := &fakeNow{t: simStart}
	clock := NewClock(simStart, WithNowFunc(wall.now))
	env, err := NewEnvironment(clock, map[string]ModalityState{"notes": &noteState{}})
	require.NoError(t, err)
	engine := NewEngine(clock, env, NewEventQueue())

	_, err = engine.AdvanceTime(time.Hour)
	assert.True(t, IsLifecycleError(err))

	_, err = engine.SetTime(simStart.Add(time.Hour), false)
	assert.True(t, IsLifecycleError(err))

	_, err = engine.SkipToNextEvent()
	assert.True(t, IsLifecycleError(err))
}

// Events at t=1h with priorities 1 and 10 plus an event at t=2h: a
// 90-minute advance executes exactly the two t=1h events, higher
// priority first.
func TestEngineAdvanceExecutesDueInOrder(t *testing.T) {
	rig := newTestEngine(t)

	require.NoError(t, rig.engine.AddEvent(newNoteEvent("low", simStart.Add(time.Hour), WithPriority(1))))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("high", simStart.Add(time.Hour), WithPriority(10))))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("later", simStart.Add(2*time.Hour))))

	result, err := rig.engine.AdvanceTime(90 * time.Minute)
	require.NoError(t, err)

	assert.Equal(t, simStart.Add(90*time.Minute), result.NewTime)
	assert.Equal(t, 2, result.Executed)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "high", result.Records[0].EventID)
	assert.Equal(t, "low", result.Records[1].EventID)
	assert.Equal(t, []string{"high", "low"}, rig.state.notes)

	assert.Equal(t, StatusPending, rig.engine.Queue().Get("later").Status)
}

func TestEngineAdvanceRejectsNonPositiveDelta(t *testing.T) {
	rig := newTestEngine(t)

	for _, delta := range []time.Duration{0, -time.Minute} {
		_, err := rig.engine.AdvanceTime(delta)
		require.Error(t, err)
		assert.True(t, IsOutOfRange(err))
	}
}

// A jump with execute_skipped=false marks the jumped-over event SKIPPED
// and leaves the modality state untouched.
func TestEngineSetTimeSkips(t *testing.T) {
	rig := newTestEngine(t)
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("jumped", simStart.Add(30*time.Minute))))

	result, err := rig.engine.SetTime(simStart.Add(time.Hour), false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Executed)
	assert.Equal(t, simStart.Add(time.Hour), rig.clock.Current())

	jumped := rig.engine.Queue().Get("jumped")
	assert.Equal(t, StatusSkipped, jumped.Status)
	assert.Contains(t, jumped.Metadata["skip_reason"], "time jump")
	assert.Empty(t, rig.state.notes)
}

// The same jump with execute_skipped=true executes the event with the
// same effect as a normal due-event execution.
func TestEngineSetTimeExecutesSkipped(t *testing.T) {
	rig := newTestEngine(t)
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("jumped", simStart.Add(30*time.Minute))))

	result, err := rig.engine.SetTime(simStart.Add(time.Hour), true)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, StatusExecuted, rig.engine.Queue().Get("jumped").Status)
	assert.Equal(t, []string{"jumped"}, rig.state.notes)
}

func TestEngineSetTimeLeavesOutsideEventsAlone(t *testing.T) {
	rig := newTestEngine(t)
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("inside", simStart.Add(30*time.Minute))))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("beyond", simStart.Add(2*time.Hour))))

	_, err := rig.engine.SetTime(simStart.Add(time.Hour), false)
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, rig.engine.Queue().Get("inside").Status)
	assert.Equal(t, StatusPending, rig.engine.Queue().Get("beyond").Status)
}

func TestEngineSetTimeBackwardRejected(t *testing.T) {
	rig := newTestEngine(t)
	_, err := rig.engine.AdvanceTime(time.Hour)
	require.NoError(t, err)

	_, err = rig.engine.SetTime(simStart.Add(30*time.Minute), false)
	require.Error(t, err)
	assert.True(t, IsOutOfRange(err))
}

func TestEngineSkipToNextEvent(t *testing.T) {
	rig := newTestEngine(t)
	at := simStart.Add(time.Hour)
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("a", at)))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("b", at, WithPriority(5))))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("c", simStart.Add(2*time.Hour))))

	result, err := rig.engine.SkipToNextEvent()
	require.NoError(t, err)

	// Both events at the shared timestamp execute in one jump.
	assert.False(t, result.NoPending)
	assert.Equal(t, at, result.NewTime)
	assert.Equal(t, 2, result.Executed)
	assert.Equal(t, []string{"b", "a"}, rig.state.notes)
	require.NotNil(t, result.NextEventTime)
	assert.Equal(t, simStart.Add(2*time.Hour), *result.NextEventTime)
}

// Skipping on an empty queue reports no pending events and leaves the
// clock untouched.
func TestEngineSkipToNextEventEmpty(t *testing.T) {
	rig := newTestEngine(t)

	result, err := rig.engine.SkipToNextEvent()
	require.NoError(t, err)
	assert.True(t, result.NoPending)
	assert.Equal(t, simStart, result.NewTime)
	assert.Equal(t, simStart, rig.clock.Current())
}

func TestEngineExecuteDueEvents(t *testing.T) {
	rig := newTestEngine(t)

	due := newNoteEvent("due", simStart)
	require.NoError(t, rig.engine.AddEvent(due))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("future", simStart.Add(time.Hour))))

	records := rig.engine.ExecuteDueEvents()
	require.Len(t, records, 1)
	assert.Equal(t, "due", records[0].EventID)
	assert.Equal(t, StatusExecuted, records[0].Status)
	assert.Equal(t, "note: due", records[0].Summary)

	// Nothing left due: repeat is a no-op.
	assert.Empty(t, rig.engine.ExecuteDueEvents())
}

// One failing event must not abort the run or block later events.
func TestEngineFailureIsolation(t *testing.T) {
	rig := newTestEngine(t)

	bad := NewEvent("bad", simStart.Add(time.Hour), "notes",
		&noteInput{Text: "x"}, WithCreatedAt(simStart), WithPriority(5))
	require.NoError(t, rig.engine.AddEvent(bad))
	// Invalidate the payload after enqueueing so Add's validation passes.
	bad.Payload.(*noteInput).invalid = true
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("good", simStart.Add(time.Hour))))

	result, err := rig.engine.AdvanceTime(time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Executed)
	require.Len(t, result.Records, 2)
	assert.Equal(t, StatusFailed, result.Records[0].Status)
	assert.Contains(t, result.Records[0].Error, "payload validation failed")
	assert.Equal(t, StatusExecuted, result.Records[1].Status)
	assert.Equal(t, []string{"good"}, rig.state.notes)
}

func TestEngineTick(t *testing.T) {
	rig := newTestEngine(t)
	require.NoError(t, rig.clock.SetScale(1000))
	rig.clock.SetAutoAdvance(true)
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("due-soon", simStart.Add(30*time.Minute))))

	// 2 wall seconds at scale 1000 is ~33 virtual minutes.
	rig.wall.advance(2 * time.Second)
	require.NoError(t, rig.engine.Tick())

	assert.Equal(t, simStart.Add(2000*time.Second), rig.clock.Current())
	assert.Equal(t, StatusExecuted, rig.engine.Queue().Get("due-soon").Status)

	// Without wall progress a tick is a no-op.
	before := rig.clock.Current()
	require.NoError(t, rig.engine.Tick())
	assert.Equal(t, before, rig.clock.Current())
}

func TestEngineTickWhilePaused(t *testing.T) {
	rig := newTestEngine(t)
	rig.clock.SetAutoAdvance(true)
	rig.engine.Pause()

	rig.wall.advance(time.Minute)
	require.NoError(t, rig.engine.Tick())
	assert.Equal(t, simStart, rig.clock.Current())

	rig.engine.Resume()
	rig.wall.advance(time.Minute)
	require.NoError(t, rig.engine.Tick())
	assert.Equal(t, simStart.Add(time.Minute), rig.clock.Current())
}

func TestEngineReset(t *testing.T) {
	rig := newTestEngine(t)
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("a", simStart.Add(time.Hour))))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("b", simStart.Add(2*time.Hour))))

	_, err := rig.engine.SetTime(simStart.Add(90*time.Minute), true)
	require.NoError(t, err)
	require.NoError(t, rig.engine.Queue().Get("b").Skip("test"))

	rig.engine.Reset()

	for _, id := range []string{"a", "b"} {
		event := rig.engine.Queue().Get(id)
		assert.Equal(t, StatusPending, event.Status, "event %s", id)
		assert.Nil(t, event.ExecutedAt)
		assert.Empty(t, event.ErrorMessage)
	}

	// Reset rewinds event statuses, not modality state or the clock.
	assert.Equal(t, []string{"a"}, rig.state.notes)
	assert.Equal(t, simStart.Add(90*time.Minute), rig.clock.Current())
}

func TestEngineQueryEvents(t *testing.T) {
	rig := newTestEngine(t)
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("a", simStart.Add(time.Hour), WithAgentID("agent-1"))))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("b", simStart.Add(2*time.Hour), WithAgentID("agent-2"))))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("c", simStart.Add(3*time.Hour), WithAgentID("agent-1"))))

	_, err := rig.engine.AdvanceTime(time.Hour)
	require.NoError(t, err)

	assert.Len(t, rig.engine.QueryEvents(EventFilter{}), 3)
	assert.Equal(t, []string{"a"}, queueIDs(rig.engine.QueryEvents(EventFilter{Status: StatusExecuted})))
	assert.Equal(t, []string{"a", "c"}, queueIDs(rig.engine.QueryEvents(EventFilter{AgentID: "agent-1"})))

	start := simStart.Add(2 * time.Hour)
	end := simStart.Add(3 * time.Hour)
	assert.Equal(t, []string{"b", "c"},
		queueIDs(rig.engine.QueryEvents(EventFilter{Start: &start, End: &end})))
}

func TestEngineValidateCrossChecks(t *testing.T) {
	rig := newTestEngine(t)
	assert.Empty(t, rig.engine.Validate())

	event := newNoteEvent("orphan", simStart.Add(time.Hour))
	require.NoError(t, rig.engine.AddEvent(event))
	event.Modality = "email"

	findings := rig.engine.Validate()
	require.NotEmpty(t, findings)
	joined := ""
	for _, f := range findings {
		joined += f + "\n"
	}
	assert.Contains(t, joined, "unknown modality")
}

func TestEngineSnapshot(t *testing.T) {
	rig := newTestEngine(t)
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("next", simStart.Add(time.Hour), WithPriority(2))))
	require.NoError(t, rig.engine.AddEvent(newNoteEvent("done", simStart)))
	rig.engine.ExecuteDueEvents()

	snapshot := rig.engine.Snapshot()
	assert.Equal(t, "sim-test", snapshot.SimulationID)
	assert.True(t, snapshot.Running)
	assert.Equal(t, ModeManual, snapshot.Mode)
	assert.Equal(t, simStart, snapshot.CurrentTime)
	assert.Equal(t, 2, snapshot.Queue.Total)
	assert.Equal(t, 1, snapshot.Queue.Pending)
	assert.Equal(t, 1, snapshot.Queue.Executed)
	require.NotNil(t, snapshot.Queue.NextEvent)
	assert.Equal(t, "next", snapshot.Queue.NextEvent.ID)
	assert.Equal(t, "note: next", snapshot.Queue.NextEvent.Summary)
}

// Auto-advance at a large scale: wall time is converted through the
// scale and due events execute along the way.
func TestEngineAutoAdvanceScaling(t *testing.T) {
	wall := &fakeNow{t: simStart}
	clock := NewClock(simStart, WithNowFunc(wall.now))
	state := &noteState{}
	env, err := NewEnvironment(clock, map[string]ModalityState{"notes": state})
	require.NoError(t, err)

	engine := NewEngine(clock, env, NewEventQueue(),
		WithSimulationID("sim-auto"), WithTickInterval(time.Millisecond))
	require.NoError(t, engine.AddEvent(newNoteEvent("during", simStart.Add(10*time.Minute))))

	require.NoError(t, engine.Start(true, 1000))
	assert.Equal(t, ModeFastForward, clock.Mode())

	// Drive the loop deterministically instead of sleeping: move the
	// fake wall clock and wait for a tick to pick it up.
	wall.advance(time.Second)
	require.Eventually(t, func() bool {
		return clock.Current().Equal(simStart.Add(1000 * time.Second))
	}, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return engine.Queue().Get("during").Status == StatusExecuted
	}, 2*time.Second, time.Millisecond)

	summary := engine.Stop()
	require.NotNil(t, summary)
	assert.Equal(t, simStart.Add(1000*time.Second), summary.FinalTime)
	assert.Equal(t, 1, summary.EventCounts[StatusExecuted])
}
