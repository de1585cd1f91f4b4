// Package sim implements the discrete-event simulation core: a virtual
// clock decoupled from wall time, a time-ordered event queue, an
// environment of named modality states, and the engine that drives them
// across manual, event-driven and auto-advance modes.
//
// State changes only through timestamped, ordered events, so a run with
// the same inputs is deterministic and replayable. Events that tie on
// scheduled time execute in descending priority order, then ascending
// creation order.
package sim
