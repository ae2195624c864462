package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/vaxmesh/core"
)

// Published is one task handed to an outbox.
type Published struct {
	Topic string
	Task  core.UserTask
}

// RecordingOutbox implements core.Outbox by recording everything in memory.
// PublishErr, when set, is returned by Publish without recording.
type RecordingOutbox struct {
	PublishErr error

	mu        sync.Mutex
	published []Published
	events    []core.Event
}

// NewRecordingOutbox creates an empty recording outbox.
func NewRecordingOutbox() *RecordingOutbox { return &RecordingOutbox{} }

// Publish records the handoff.
func (o *RecordingOutbox) Publish(_ context.Context, topic string, task core.UserTask) error {
	if o.PublishErr != nil {
		return o.PublishErr
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.published = append(o.published, Published{Topic: topic, Task: task})

	return nil
}

// Emit records the event.
func (o *RecordingOutbox) Emit(_ context.Context, ev core.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.events = append(o.events, ev)

	return nil
}

// Published returns the recorded handoffs.
func (o *RecordingOutbox) Published() []Published {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]Published(nil), o.published...)
}

// Events returns the recorded events.
func (o *RecordingOutbox) Events() []core.Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]core.Event(nil), o.events...)
}

// EventsOfType returns the recorded events of type t.
func (o *RecordingOutbox) EventsOfType(t core.EventType) []core.Event {
	var out []core.Event

	for _, ev := range o.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}

	return out
}

// Last returns the most recent event.
func (o *RecordingOutbox) Last() (core.Event, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.events) == 0 {
		return core.Event{}, false
	}

	return o.events[len(o.events)-1], true
}
