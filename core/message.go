package core

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// MessageKind distinguishes success flashes from errors.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

const (
	// SuccessMessageTTL is how long a success message stays visible.
	SuccessMessageTTL = 3000 * time.Millisecond
	// RecentlyUpdatedTTL is how long a saved record stays highlighted.
	RecentlyUpdatedTTL = 2000 * time.Millisecond
)

// Message is a transient status line. Error messages have no TTL and stay
// until replaced or cleared.
type Message struct {
	Kind      MessageKind `json:"kind"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

// delayedTasks owns the self-clearing timers of one screen. Each slot holds at
// most one pending timer; scheduling into a busy slot replaces it. Callers
// serialize access with the screen's lock.
type delayedTasks struct {
	clock clockwork.Clock
	slots map[string]clockwork.Timer
}

func newDelayedTasks(clock clockwork.Clock) *delayedTasks {
	return &delayedTasks{clock: clock, slots: make(map[string]clockwork.Timer)}
}

func (d *delayedTasks) schedule(slot string, after time.Duration, f func()) {
	d.cancel(slot)
	d.slots[slot] = d.clock.AfterFunc(after, f)
}

func (d *delayedTasks) cancel(slot string) {
	if t, ok := d.slots[slot]; ok {
		t.Stop()
		delete(d.slots, slot)
	}
}

func (d *delayedTasks) stopAll() {
	for slot := range d.slots {
		d.cancel(slot)
	}
}
