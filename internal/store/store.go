package store

import (
	"context"
	"time"

	"github.com/jpalmerr/parkboard/internal/feed"
)

// Snapshot is a read-only copy of the store state.
//
// Snapshot is the storage representation of the live feed, optimized for
// JSON serialization (used by the REST API and SSE). Statuses maps a spot
// key (e.g. "spot_3") to the lowercased status last reported for it.
type Snapshot struct {
	// Statuses holds the last status reported per spot key.
	Statuses map[string]string `json:"statuses"`

	// Health is the connection health: "connecting", "connected" or "error".
	Health string `json:"health"`

	// Version increases by one on every published change.
	Version uint64 `json:"version"`

	// UpdatedAt is the time of the last published change.
	// Zero until the first change.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for the live status store.
//
// Store implementations must be safe for concurrent reads. Writes come from
// a single goroutine (see [MemoryStore.Run]).
type Store interface {
	// Apply applies one feed message and reports whether the state changed.
	// Changes are published to all subscribers.
	Apply(msg feed.Message) bool

	// Run applies messages from in until it is closed or ctx is done.
	Run(ctx context.Context, in <-chan feed.Message)

	// Snapshot returns a copy of the current state.
	Snapshot() Snapshot

	// Subscribe returns a channel that receives a snapshot after every change.
	// The returned channel has a buffer; slow consumers may miss snapshots.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}

// Observer is notified about applied messages. It is used for metrics.
type Observer interface {
	EventApplied(status string)
	InvalidMessage()
	HealthChanged(health string)
}

type nopObserver struct{}

func (nopObserver) EventApplied(string)  {}
func (nopObserver) InvalidMessage()      {}
func (nopObserver) HealthChanged(string) {}
