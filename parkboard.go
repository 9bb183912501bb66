package parkboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/parkboard/dashboard"
	"github.com/jpalmerr/parkboard/internal/feed"
	"github.com/jpalmerr/parkboard/internal/metrics"
	"github.com/jpalmerr/parkboard/internal/server"
	"github.com/jpalmerr/parkboard/internal/store"
)

const defaultPort = 8080

// ErrUnknownLocation is returned when a location id is not configured.
var ErrUnknownLocation = errors.New("unknown location")

// ErrAlreadyMounted is returned by [ParkBoard.Mount] while an earlier
// mount has not been unmounted.
var ErrAlreadyMounted = errors.New("live feed already mounted")

// ParkBoard is the main orchestrator for the live feed and dashboard serving.
//
// ParkBoard owns the live status store, keeps it fed from the configured
// [Feed] and serves the dashboard via HTTP. It is created using [New] with
// functional options and started with [ParkBoard.Start].
//
// The typical lifecycle is:
//
//	pb, err := parkboard.New(
//	    parkboard.WithLocations(locations...),
//	    parkboard.WithSpots(spots...),
//	    parkboard.WithFeed(f),
//	)
//	if err != nil {
//	    slog.Error("failed to create parkboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	pb.Start(ctx) // blocks until context cancelled
type ParkBoard struct {
	title     string
	locations []Location
	spots     []Spot
	sessions  []Session
	users     []User
	feed      *Feed
	tracked   string
	port      int
	logger    *slog.Logger
	callbacks []func(LiveSnapshot)

	metrics *metrics.Metrics
	store   *store.MemoryStore
	mounted atomic.Bool
}

// New creates a new [ParkBoard] instance with the given options.
//
// At least one location must be configured via [WithLocations]. Location,
// spot, session and user ids must be unique, every spot must reference a
// configured location and carry a valid [SpotStatus]. Other options have
// sensible defaults:
//   - Port: 8080
//   - Tracked location: [DefaultTrackedLocation]
//   - Feed: none, so the banner stays at "Connecting..."
//
// Example:
//
//	pb, err := parkboard.New(
//	    parkboard.WithLocations(locations...),
//	    parkboard.WithSpots(spots...),
//	    parkboard.WithPort(9090),
//	)
func New(opts ...Option) (*ParkBoard, error) {
	cfg := &pbConfig{
		port: defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.locations) == 0 {
		return nil, errors.New("at least one location is required")
	}

	known := make(map[string]bool, len(cfg.locations))
	for _, loc := range cfg.locations {
		if loc.ID == "" {
			return nil, errors.New("location id cannot be empty")
		}
		if known[loc.ID] {
			return nil, fmt.Errorf("duplicate location id: %q", loc.ID)
		}
		known[loc.ID] = true
	}

	seenSpots := make(map[string]bool, len(cfg.spots))
	for _, spot := range cfg.spots {
		if spot.ID == "" {
			return nil, errors.New("spot id cannot be empty")
		}
		if seenSpots[spot.ID] {
			return nil, fmt.Errorf("duplicate spot id: %q", spot.ID)
		}
		seenSpots[spot.ID] = true
		if !known[spot.LocationID] {
			return nil, fmt.Errorf("spot %q references unknown location %q", spot.ID, spot.LocationID)
		}
		if !spot.Status.Valid() {
			return nil, fmt.Errorf("spot %q has invalid status %q", spot.ID, spot.Status)
		}
	}

	seenSessions := make(map[string]bool, len(cfg.sessions))
	for _, sess := range cfg.sessions {
		if seenSessions[sess.ID] {
			return nil, fmt.Errorf("duplicate session id: %q", sess.ID)
		}
		seenSessions[sess.ID] = true
	}

	seenUsers := make(map[string]bool, len(cfg.users))
	for _, u := range cfg.users {
		if u.ID == "" {
			return nil, errors.New("user id cannot be empty")
		}
		if seenUsers[u.ID] {
			return nil, fmt.Errorf("duplicate user id: %q", u.ID)
		}
		seenUsers[u.ID] = true
	}

	tracked := DefaultTrackedLocation
	if cfg.trackedLocation != "" {
		if !known[cfg.trackedLocation] {
			return nil, fmt.Errorf("tracked location %q is not configured", cfg.trackedLocation)
		}
		tracked = cfg.trackedLocation
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.New()
	return &ParkBoard{
		title:     cfg.title,
		locations: cfg.locations,
		spots:     cfg.spots,
		sessions:  cfg.sessions,
		users:     cfg.users,
		feed:      cfg.feed,
		tracked:   tracked,
		port:      cfg.port,
		logger:    logger,
		callbacks: cfg.liveCallbacks,
		metrics:   m,
		store:     store.NewMemoryStore(m),
	}, nil
}

// Start connects the live feed and serves the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The HTTP server starts on the configured port
//   - The feed subscription is mounted and applied to the live store
//   - Live callbacks run after every store change
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start or the feed cannot be built.
func (pb *ParkBoard) Start(ctx context.Context) error {
	pb.logger.Info("parkboard starting",
		"location_count", len(pb.locations),
		"spot_count", len(pb.spots),
		"tracked_location", pb.tracked,
	)
	pb.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", pb.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	srv, err := pb.newServer()
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// subscribe before mounting so the first transition reaches callbacks
	updates := pb.store.Subscribe()

	unmount, err := pb.Mount(ctx)
	if err != nil {
		pb.store.Unsubscribe(updates)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer pb.store.Unsubscribe(updates)
		pb.runCallbacks(gctx, updates)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		unmount()
		return nil
	})

	err = g.Wait()
	pb.logger.Info("parkboard stopped")
	return err
}

// Mount subscribes to the configured feed and applies its messages to the
// live store until the returned unmount function is called or ctx is done.
//
// Unmount closes the feed connection exactly once and waits until no
// further message can reach the store; calling it again is a no-op.
// Only one mount may be active at a time, keeping the store loop the sole
// writer; a second Mount before unmount returns [ErrAlreadyMounted].
// Without a feed, Mount does nothing and returns a no-op unmount.
func (pb *ParkBoard) Mount(ctx context.Context) (unmount func(), err error) {
	if !pb.mounted.CompareAndSwap(false, true) {
		return nil, ErrAlreadyMounted
	}

	if pb.feed == nil {
		pb.logger.Info("no live feed configured")
		return sync.OnceFunc(func() { pb.mounted.Store(false) }), nil
	}

	t, err := pb.feed.transport(pb.logger)
	if err != nil {
		pb.mounted.Store(false)
		return nil, fmt.Errorf("failed to build %s feed: %w", pb.feed.kind, err)
	}

	sub := feed.Subscribe(ctx, t, pb.logger)
	pb.logger.Info("live feed mounted",
		"kind", pb.feed.kind,
		"url", pb.feed.url,
		"subscription_id", sub.ID(),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pb.store.Run(ctx, sub.Messages())
	}()

	return sync.OnceFunc(func() {
		sub.Close()
		<-done
		pb.mounted.Store(false)
		pb.logger.Info("live feed unmounted", "subscription_id", sub.ID())
	}), nil
}

// runCallbacks delivers store changes to the live callbacks until ctx is
// done. A slow callback only delays this goroutine; the store drops
// snapshots for it rather than blocking.
func (pb *ParkBoard) runCallbacks(ctx context.Context, updates <-chan store.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			pb.logTransition(snap)
			if len(pb.callbacks) == 0 {
				continue
			}
			live := snapshotFromStore(snap)
			for _, cb := range pb.callbacks {
				invokeCallbackSafe(cb, live, pb.logger)
			}
		}
	}
}

func (pb *ParkBoard) logTransition(snap store.Snapshot) {
	pb.logger.Debug("live store changed",
		"health", snap.Health,
		"version", snap.Version,
		"spot_count", len(snap.Statuses),
	)
}

// Handler returns the dashboard HTTP handler without starting a listener.
//
// The handler serves the same routes as [ParkBoard.Start], which makes it
// suitable for embedding in an existing server or for tests.
func (pb *ParkBoard) Handler() (http.Handler, error) {
	srv, err := pb.newServer()
	if err != nil {
		return nil, err
	}
	return srv.Handler(), nil
}

func (pb *ParkBoard) newServer() (*server.Server, error) {
	return server.NewServer(serverSource{pb: pb}, pb.store, server.Config{
		Port:    pb.port,
		Title:   pb.title,
		Assets:  dashboard.Assets,
		Metrics: pb.metrics.Handler(),
		Logger:  pb.logger,
	})
}

// Grid renders the spot grid of a location against the current live
// snapshot.
//
// Returns [ErrUnknownLocation] if the location is not configured.
func (pb *ParkBoard) Grid(locationID string) (Grid, error) {
	if _, ok := pb.location(locationID); !ok {
		return Grid{}, fmt.Errorf("%w: %q", ErrUnknownLocation, locationID)
	}
	pb.metrics.GridRendered(locationID)
	return RenderGrid(pb.spots, locationID, pb.Snapshot(), WithTrackedLocation(pb.tracked)), nil
}

// Snapshot returns the current state of the live status store.
func (pb *ParkBoard) Snapshot() LiveSnapshot {
	return snapshotFromStore(pb.store.Snapshot())
}

// Stats returns the dashboard statistics of the configured fixtures.
func (pb *ParkBoard) Stats() Stats {
	return ComputeStats(pb.spots, pb.sessions)
}

// LocationSummary is one row of the [Overview].
type LocationSummary struct {
	Location  Location  `json:"location"`
	Occupancy Occupancy `json:"occupancy"`
	Tracked   bool      `json:"tracked"`
}

// Overview is the data shown on the dashboard index page.
type Overview struct {
	Stats     Stats             `json:"stats"`
	Locations []LocationSummary `json:"locations"`
	Health    ConnectionHealth  `json:"health"`
}

// Overview returns the statistics plus the displayed occupancy of every
// location, in configuration order.
func (pb *ParkBoard) Overview() Overview {
	live := pb.Snapshot()
	occupancy := LocationOccupancy(pb.locations, pb.spots, live, WithTrackedLocation(pb.tracked))

	summaries := make([]LocationSummary, len(pb.locations))
	for i, loc := range pb.locations {
		summaries[i] = LocationSummary{
			Location:  loc,
			Occupancy: occupancy[i],
			Tracked:   loc.ID == pb.tracked,
		}
	}
	return Overview{
		Stats:     pb.Stats(),
		Locations: summaries,
		Health:    live.Health,
	}
}

// Locations returns a copy of the configured locations.
func (pb *ParkBoard) Locations() []Location {
	return append([]Location(nil), pb.locations...)
}

// Spots returns a copy of the configured spots.
func (pb *ParkBoard) Spots() []Spot {
	return append([]Spot(nil), pb.spots...)
}

// Sessions returns a copy of the configured sessions.
func (pb *ParkBoard) Sessions() []Session {
	return append([]Session(nil), pb.sessions...)
}

// Users returns a copy of the configured users.
func (pb *ParkBoard) Users() []User {
	return append([]User(nil), pb.users...)
}

// Port returns the configured HTTP port for the dashboard server.
func (pb *ParkBoard) Port() int {
	return pb.port
}

// TrackedLocation returns the id of the location under live tracking.
func (pb *ParkBoard) TrackedLocation() string {
	return pb.tracked
}

func (pb *ParkBoard) location(id string) (Location, bool) {
	for _, loc := range pb.locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return Location{}, false
}

// invokeCallbackSafe calls a live callback with panic recovery.
// Panics are logged with a correlation id but do not propagate.
func invokeCallbackSafe(cb func(LiveSnapshot), snap LiveSnapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("live callback panicked",
				"panic", r,
				"correlation_id", uuid.NewString(),
				"version", snap.Version,
			)
		}
	}()
	cb(snap)
}

// serverSource adapts ParkBoard to the server's data interface.
type serverSource struct {
	pb *ParkBoard
}

func (s serverSource) Overview() any  { return s.pb.Overview() }
func (s serverSource) Locations() any { return s.pb.Locations() }
func (s serverSource) Stats() any     { return s.pb.Stats() }
func (s serverSource) Sessions() any  { return s.pb.Sessions() }
func (s serverSource) Users() any     { return s.pb.Users() }
func (s serverSource) Live() any      { return s.pb.Snapshot() }

func (s serverSource) Location(id string) (any, bool) {
	loc, ok := s.pb.location(id)
	if !ok {
		return nil, false
	}
	return loc, true
}

func (s serverSource) Grid(id string) (any, bool) {
	grid, err := s.pb.Grid(id)
	if err != nil {
		return nil, false
	}
	return grid, true
}
