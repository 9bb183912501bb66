package parkboard

import (
	"errors"
	"log/slog"
)

// pbConfig holds mutable state during ParkBoard construction.
type pbConfig struct {
	title           string
	locations       []Location
	spots           []Spot
	sessions        []Session
	users           []User
	feed            *Feed
	trackedLocation string
	port            int
	logger          *slog.Logger
	liveCallbacks   []func(LiveSnapshot)
}

// Option is a function that configures a [ParkBoard] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithLocations], [WithSpots], [WithSessions], [WithUsers], [WithFeed],
// [WithLiveTracking], [WithPort], [WithLogger], [WithTitle],
// [WithLiveCallback].
type Option func(*pbConfig) error

// WithLocations adds parking locations. Can be called multiple times.
//
// At least one location must be configured for [New] to succeed.
func WithLocations(locations ...Location) Option {
	return func(cfg *pbConfig) error {
		cfg.locations = append(cfg.locations, locations...)
		return nil
	}
}

// WithSpots adds parking spots. Every spot must reference a configured
// location. Can be called multiple times.
func WithSpots(spots ...Spot) Option {
	return func(cfg *pbConfig) error {
		cfg.spots = append(cfg.spots, spots...)
		return nil
	}
}

// WithSessions adds parking sessions used for revenue and activity stats.
// Can be called multiple times.
func WithSessions(sessions ...Session) Option {
	return func(cfg *pbConfig) error {
		cfg.sessions = append(cfg.sessions, sessions...)
		return nil
	}
}

// WithUsers adds registered users for the user table. Can be called
// multiple times.
func WithUsers(users ...User) Option {
	return func(cfg *pbConfig) error {
		cfg.users = append(cfg.users, users...)
		return nil
	}
}

// WithFeed sets the live status feed.
//
// Without a feed, no location receives live updates and the connection
// banner stays at "Connecting...".
//
// Example:
//
//	f, _ := parkboard.NewFeed(parkboard.FeedWebSocket, "ws://localhost:9000/ws")
//	pb, err := parkboard.New(
//	    parkboard.WithLocations(locations...),
//	    parkboard.WithFeed(f),
//	)
func WithFeed(f Feed) Option {
	return func(cfg *pbConfig) error {
		if f.kind == "" {
			return errors.New("feed must be created with NewFeed")
		}
		cfg.feed = &f
		return nil
	}
}

// WithLiveTracking sets the location whose spots follow the live feed.
// Defaults to [DefaultTrackedLocation]. The location must be configured.
//
// Returns an error if id is empty.
func WithLiveTracking(locationID string) Option {
	return func(cfg *pbConfig) error {
		if locationID == "" {
			return errors.New("tracked location id cannot be empty")
		}
		cfg.trackedLocation = locationID
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *pbConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the ParkBoard instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pbConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithLiveCallback registers a function called after every change of the
// live status store.
//
// The callback receives a copy of the new [LiveSnapshot]. Multiple
// callbacks execute in registration order from a single goroutine.
//
// IMPORTANT: Callbacks must be non-blocking. A slow callback makes the
// callback goroutine miss intermediate snapshots; it never blocks the feed.
//
// Panics within callbacks are recovered and logged with a correlation id.
//
// Example:
//
//	pb, err := parkboard.New(
//	    parkboard.WithLocations(locations...),
//	    parkboard.WithLiveCallback(func(s parkboard.LiveSnapshot) {
//	        if s.Health == parkboard.HealthError {
//	            log.Println("ALERT: live feed is down")
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithLiveCallback(cb func(LiveSnapshot)) Option {
	return func(cfg *pbConfig) error {
		if cb == nil {
			return nil
		}
		cfg.liveCallbacks = append(cfg.liveCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "ParkBoard".
func WithTitle(title string) Option {
	return func(cfg *pbConfig) error {
		cfg.title = title
		return nil
	}
}
