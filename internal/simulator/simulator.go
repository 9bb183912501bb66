package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	defaultSpots    = 10
	defaultPrefix   = "spot_"
	defaultInterval = 2 * time.Second
	writeTimeout    = 5 * time.Second
)

// DefaultStatuses are the live statuses a simulator cycles through.
var DefaultStatuses = []string{"occupied", "empty", "expired"}

// Event is the payload broadcast for every status change.
type Event struct {
	SpotID string `json:"spotId"`
	Status string `json:"status"`
}

// Config configures a Simulator. Zero values select defaults.
type Config struct {
	// Spots is the number of simulated spots, keyed Prefix+0 .. Prefix+Spots-1.
	Spots int

	// Prefix is prepended to the spot index to form a spot id.
	Prefix string

	// Interval between random status changes.
	Interval time.Duration

	// Statuses a spot may be set to.
	Statuses []string

	// Seed makes the sequence of changes reproducible when non-zero.
	Seed uint64

	Logger *slog.Logger
}

// Simulator publishes random spot status changes to WebSocket clients and
// serves the current state over plain HTTP.
type Simulator struct {
	spots    int
	prefix   string
	interval time.Duration
	statuses []string
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	rng     *rand.Rand
	state   map[string]string
	clients map[*websocket.Conn]struct{}
}

// New creates a simulator. Every spot starts in the first status.
func New(cfg Config) (*Simulator, error) {
	if cfg.Spots < 0 {
		return nil, fmt.Errorf("spots must not be negative, got %d", cfg.Spots)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("interval must not be negative, got %s", cfg.Interval)
	}

	s := &Simulator{
		spots:    cfg.Spots,
		prefix:   cfg.Prefix,
		interval: cfg.Interval,
		statuses: cfg.Statuses,
		logger:   cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		state:   make(map[string]string),
		clients: make(map[*websocket.Conn]struct{}),
	}
	if s.spots == 0 {
		s.spots = defaultSpots
	}
	if s.prefix == "" {
		s.prefix = defaultPrefix
	}
	if s.interval == 0 {
		s.interval = defaultInterval
	}
	if len(s.statuses) == 0 {
		s.statuses = DefaultStatuses
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s.rng = rand.New(rand.NewPCG(seed, seed))

	for i := 0; i < s.spots; i++ {
		s.state[s.spotID(i)] = s.statuses[0]
	}
	return s, nil
}

func (s *Simulator) spotID(i int) string {
	return fmt.Sprintf("%s%d", s.prefix, i)
}

// Handler returns the simulator routes:
//
//	GET /ws     WebSocket stream of status changes
//	GET /spots  current state as a JSON array
func (s *Simulator) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)
	r.HandleFunc("/spots", s.serveSpots).Methods(http.MethodGet)
	return r
}

// Run changes one random spot every interval until ctx is done, then closes
// every connected client.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.closeClients()

	s.logger.Info("simulator running", "spots", s.spots, "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Publish(s.randomEvent())
		}
	}
}

func (s *Simulator) randomEvent() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Event{
		SpotID: s.spotID(s.rng.IntN(s.spots)),
		Status: s.statuses[s.rng.IntN(len(s.statuses))],
	}
}

// Publish records ev and broadcasts it to every connected client. A client
// whose write fails is dropped.
func (s *Simulator) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to encode event", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state[ev.SpotID] = ev.Status
	for conn := range s.clients {
		if err := writeText(conn, payload); err != nil {
			s.logger.Debug("dropping client", "remote", conn.RemoteAddr().String(), "error", err)
			delete(s.clients, conn)
			_ = conn.Close()
		}
	}
}

// Snapshot returns the current state sorted by spot id.
func (s *Simulator) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Simulator) snapshotLocked() []Event {
	events := make([]Event, 0, len(s.state))
	for id, status := range s.state {
		events = append(events, Event{SpotID: id, Status: status})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].SpotID < events[j].SpotID })
	return events
}

// Clients returns the number of connected WebSocket clients.
func (s *Simulator) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Simulator) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// new clients receive the full state before any change
	s.mu.Lock()
	payload, err := json.Marshal(s.snapshotLocked())
	if err == nil {
		err = writeText(conn, payload)
	}
	if err != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("client connected", "remote", conn.RemoteAddr().String())

	// reads only detect the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.logger.Debug("client disconnected", "remote", conn.RemoteAddr().String())
}

func (s *Simulator) serveSpots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Snapshot()); err != nil {
		s.logger.Error("failed to encode spots", "error", err)
	}
}

func (s *Simulator) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "simulator stopped")
	for conn := range s.clients {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

func writeText(conn *websocket.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
