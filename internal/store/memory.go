package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/jpalmerr/parkboard/internal/feed"
)

// subscriberBuffer is the channel buffer size for each subscriber.
const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore keeps the live status map and the connection health machine.
// Status entries are keyed by spot key, with new events replacing previous
// values (last write wins, no history).
//
// Subscribers receive snapshots via buffered channels (buffer size 16).
// Snapshots are sent non-blocking; if a subscriber's buffer is full, the
// snapshot is dropped for that subscriber to prevent blocking the writer.
type MemoryStore struct {
	mu        sync.RWMutex
	statuses  map[string]string
	health    *fsm.FSM
	version   uint64
	updatedAt time.Time

	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex

	observer Observer
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store starts empty with health "connecting". A nil observer is
// replaced by a no-op.
func NewMemoryStore(observer Observer) *MemoryStore {
	if observer == nil {
		observer = nopObserver{}
	}
	return &MemoryStore{
		statuses:    make(map[string]string),
		health:      newHealthFSM(),
		subscribers: make(map[chan Snapshot]struct{}),
		observer:    observer,
		now:         time.Now,
	}
}

// Apply applies a single feed message.
//
//   - KindEvent upserts the status for the event's spot and counts as
//     proof of a working connection.
//   - KindOpen moves health to connected.
//   - KindClose and KindError move health to error.
//   - KindConnecting moves health back to connecting.
//   - KindInvalid is only reported to the observer.
//
// Apply returns true and notifies subscribers when the state changed.
func (m *MemoryStore) Apply(msg feed.Message) bool {
	m.mu.Lock()
	changed := false

	switch msg.Kind {
	case feed.KindEvent:
		key := strings.TrimSpace(msg.Event.SpotID)
		if key == "" {
			m.mu.Unlock()
			m.observer.InvalidMessage()
			return false
		}
		status := strings.ToLower(strings.TrimSpace(msg.Event.Status))
		m.statuses[key] = status
		m.observer.EventApplied(status)
		m.fire(eventConnect)
		changed = true
	case feed.KindOpen:
		changed = m.fire(eventConnect)
	case feed.KindClose, feed.KindError:
		changed = m.fire(eventFail)
	case feed.KindConnecting:
		changed = m.fire(eventRetry)
	case feed.KindInvalid:
		m.observer.InvalidMessage()
	}

	if !changed {
		m.mu.Unlock()
		return false
	}

	m.version++
	m.updatedAt = m.now()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notifySubscribers(snap)
	return true
}

// fire moves the health machine and reports health changes to the observer.
// Must be called with mu held.
func (m *MemoryStore) fire(event string) bool {
	if !transition(m.health, event) {
		return false
	}
	m.observer.HealthChanged(m.health.Current())
	return true
}

// Run applies messages from in until in is closed or ctx is done.
//
// Run is the only writer of the store. It returns without draining in when
// ctx is cancelled.
func (m *MemoryStore) Run(ctx context.Context, in <-chan feed.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			m.Apply(msg)
		}
	}
}

// Snapshot returns a copy of the current state.
//
// The returned map is a copy; modifications do not affect the store.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *MemoryStore) snapshotLocked() Snapshot {
	statuses := make(map[string]string, len(m.statuses))
	for k, v := range m.statuses {
		statuses[k] = v
	}
	return Snapshot{
		Statuses:  statuses,
		Health:    m.health.Current(),
		Version:   m.version,
		UpdatedAt: m.updatedAt,
	}
}

// Subscribe creates a new subscription and returns a channel for receiving snapshots.
//
// The returned channel has a buffer of 16 snapshots. If the buffer fills
// (slow consumer), new snapshots are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers.
//
// Subscribers share the snapshot map and must treat it as read-only.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the snapshot
		}
	}
}
