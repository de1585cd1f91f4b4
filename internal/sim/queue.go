package sim

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// EventQueue is an ordered collection of events, unique by id.
//
// The queue maintains one total order at all times:
//
//	scheduled time ascending,
//	then priority descending,
//	then creation time ascending.
//
// Status changes do not affect the sort key, so executing events in place
// never invalidates the order.
//
// Thread-safety is provided for external submission (e.g. HTTP handlers
// adding events) concurrent with the engine's lock-guarded operations.
// Returned event pointers are shared; callers mutate them only through
// the engine's serialized operations.
type EventQueue struct {
	mu     sync.Mutex
	events []*Event
	byID   map[string]*Event
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{
		events: make([]*Event, 0, 64),
		byID:   make(map[string]*Event),
	}
}

// eventBefore is the queue's total order.
func eventBefore(a, b *Event) bool {
	if !a.ScheduledTime.Equal(b.ScheduledTime) {
		return a.ScheduledTime.Before(b.ScheduledTime)
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Add inserts a single event at its ordered position.
//
// The insertion point is found by binary search (O(log n)); the slice
// shift costs O(n). Fails if the id already exists or the event fails
// structural validation; nothing is inserted on failure.
func (q *EventQueue) Add(event *Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byID[event.ID]; exists {
		return NewValidationError("duplicate event id").withEvent(event.ID)
	}
	if findings := event.Validate(); len(findings) > 0 {
		return NewValidationError("invalid event: %s", strings.Join(findings, "; ")).withEvent(event.ID)
	}

	q.insertLocked(event)
	return nil
}

// AddBatch inserts multiple events atomically: if any event collides on
// id (within the batch or with existing entries) or fails validation,
// nothing is added. On success all events are appended and the queue is
// re-sorted once (O(n log n)).
func (q *EventQueue) AddBatch(events []*Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool, len(events))
	for _, event := range events {
		if _, exists := q.byID[event.ID]; exists {
			return NewValidationError("duplicate event id").withEvent(event.ID)
		}
		if seen[event.ID] {
			return NewValidationError("duplicate event id within batch").withEvent(event.ID)
		}
		seen[event.ID] = true
		if findings := event.Validate(); len(findings) > 0 {
			return NewValidationError("invalid event: %s", strings.Join(findings, "; ")).withEvent(event.ID)
		}
	}

	for _, event := range events {
		q.events = append(q.events, event)
		q.byID[event.ID] = event
	}
	sort.SliceStable(q.events, func(i, j int) bool {
		return eventBefore(q.events[i], q.events[j])
	})
	return nil
}

// insertLocked places event at its binary-search position. Caller holds mu.
func (q *EventQueue) insertLocked(event *Event) {
	idx := sort.Search(len(q.events), func(i int) bool {
		return eventBefore(event, q.events[i])
	})
	q.events = append(q.events, nil)
	copy(q.events[idx+1:], q.events[idx:])
	q.events[idx] = event
	q.byID[event.ID] = event
}

// Due returns, in queue order, all PENDING events scheduled at or before
// currentTime. No event is mutated.
func (q *EventQueue) Due(currentTime time.Time) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*Event
	for _, event := range q.events {
		if event.ScheduledTime.After(currentTime) {
			break
		}
		if event.Status == StatusPending {
			due = append(due, event)
		}
	}
	return due
}

// PeekNext returns the first PENDING event in queue order, or nil.
func (q *EventQueue) PeekNext() *Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, event := range q.events {
		if event.Status == StatusPending {
			return event
		}
	}
	return nil
}

// ByStatus returns all events with the given status, in queue order.
func (q *EventQueue) ByStatus(status Status) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	var matched []*Event
	for _, event := range q.events {
		if event.Status == status {
			matched = append(matched, event)
		}
	}
	return matched
}

// InRange returns events with start ≤ scheduled time ≤ end, in queue
// order, optionally filtered by status. The candidate slice is bounded
// by binary search on scheduled time before any status filter applies.
func (q *EventQueue) InRange(start, end time.Time, statuses ...Status) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	lo := sort.Search(len(q.events), func(i int) bool {
		return !q.events[i].ScheduledTime.Before(start)
	})
	hi := sort.Search(len(q.events), func(i int) bool {
		return q.events[i].ScheduledTime.After(end)
	})

	var matched []*Event
	for _, event := range q.events[lo:hi] {
		if len(statuses) == 0 || statusIn(event.Status, statuses) {
			matched = append(matched, event)
		}
	}
	return matched
}

func statusIn(s Status, statuses []Status) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Get returns the event with the given id, or nil.
func (q *EventQueue) Get(id string) *Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.byID[id]
}

// Remove deletes the event with the given id (linear scan). Fails with a
// not-found error if absent. Executed and failed events are normally
// retained for history; Remove exists for cancellation-by-removal of
// still-pending events.
func (q *EventQueue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, event := range q.events {
		if event.ID == id {
			q.events = append(q.events[:i], q.events[i+1:]...)
			delete(q.byID, id)
			return nil
		}
	}
	return NewNotFoundError("event", id)
}

// ClearExecuted removes EXECUTED and FAILED events and returns the count
// removed. If before is non-nil, only events executed strictly earlier
// than it are removed.
func (q *EventQueue) ClearExecuted(before *time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.events[:0]
	removed := 0
	for _, event := range q.events {
		if q.pruneable(event, before) {
			delete(q.byID, event.ID)
			removed++
			continue
		}
		kept = append(kept, event)
	}
	// Nil out the tail so pruned events can be collected.
	for i := len(kept); i < len(q.events); i++ {
		q.events[i] = nil
	}
	q.events = kept
	return removed
}

func (q *EventQueue) pruneable(event *Event, before *time.Time) bool {
	if event.Status != StatusExecuted && event.Status != StatusFailed {
		return false
	}
	if before == nil {
		return true
	}
	return event.ExecutedAt != nil && event.ExecutedAt.Before(*before)
}

// All returns a copy of the queue contents in order.
func (q *EventQueue) All() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	all := make([]*Event, len(q.events))
	copy(all, q.events)
	return all
}

// Len returns the number of events in the queue.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Counts returns the number of events per status.
func (q *EventQueue) Counts() map[Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := make(map[Status]int)
	for _, event := range q.events {
		counts[event.Status]++
	}
	return counts
}

// Validate checks id uniqueness, total ordering, and each event's own
// structural validity. Returns findings; an empty slice means the queue
// is consistent.
func (q *EventQueue) Validate() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var findings []string

	seen := make(map[string]bool, len(q.events))
	for _, event := range q.events {
		if seen[event.ID] {
			findings = append(findings, fmt.Sprintf("duplicate event id %q", event.ID))
		}
		seen[event.ID] = true
	}

	for i := 1; i < len(q.events); i++ {
		if eventBefore(q.events[i], q.events[i-1]) {
			findings = append(findings, fmt.Sprintf(
				"ordering violated between %q and %q", q.events[i-1].ID, q.events[i].ID))
		}
	}

	for _, event := range q.events {
		for _, finding := range event.Validate() {
			findings = append(findings, fmt.Sprintf("event %q: %s", event.ID, finding))
		}
	}

	return findings
}
