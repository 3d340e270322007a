// Package history keeps a bounded in-memory log of controller events for
// the local API. Oldest events are overwritten when the ring is full.
package history

import (
	"sync"
	"time"
)

// Event is one recorded controller event.
type Event struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Ring is a fixed-capacity circular event log. Safe for concurrent use.
type Ring struct {
	mu       sync.Mutex
	events   []Event
	writePos int
	written  int // total events ever appended
}

// NewRing creates a ring that retains the last capacity events.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{events: make([]Event, capacity)}
}

// Append records an event, overwriting the oldest when full.
func (r *Ring) Append(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.writePos] = Event{Time: time.Now(), Level: level, Message: message}
	r.writePos = (r.writePos + 1) % len(r.events)
	r.written++
}

// Snapshot returns the retained events in append order, oldest first. The
// returned slice is a copy.
func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.written
	if n > len(r.events) {
		n = len(r.events)
	}
	if n == 0 {
		return nil
	}

	out := make([]Event, n)
	start := (r.writePos - n + len(r.events)) % len(r.events)
	for i := 0; i < n; i++ {
		out[i] = r.events[(start+i)%len(r.events)]
	}
	return out
}

// Len returns how many events are currently retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written > len(r.events) {
		return len(r.events)
	}
	return r.written
}
