package feed

import (
	"context"
	"time"
)

// Kind identifies what a [Message] carries.
type Kind int

const (
	// KindEvent carries a decoded spot status event.
	KindEvent Kind = iota

	// KindConnecting reports that the transport is (re)establishing its connection.
	KindConnecting

	// KindOpen reports a successful handshake.
	KindOpen

	// KindClose reports that the transport closed without being asked to.
	KindClose

	// KindError reports a transport failure. Err holds the cause.
	KindError

	// KindInvalid reports a payload that could not be decoded. Err holds the cause.
	KindInvalid
)

// String returns the lowercase name of the kind, used in logs.
func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindConnecting:
		return "connecting"
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindError:
		return "error"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Event is a single spot status update as published by the feed.
//
// Status is kept as the raw (lowercased) string; interpretation into a
// tagged status happens at render time.
type Event struct {
	SpotID string `json:"spotId"`
	Status string `json:"status"`
}

// Message is the unit delivered on a [Subscription] channel.
type Message struct {
	Kind  Kind
	Event Event
	Err   error
	At    time.Time
}

// Transport connects to a live feed and reports what it sees.
//
// Run blocks until ctx is cancelled or the transport gives up. It must
// release every connection it opened before returning. A nil return while
// ctx is still live means the remote side closed the feed.
type Transport interface {
	// Name identifies the transport in logs and metrics (e.g. "websocket").
	Name() string

	// Run connects and calls emit for every lifecycle signal and event.
	Run(ctx context.Context, emit func(Message)) error
}
