package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSimulator(t *testing.T, cfg Config) (*Simulator, *httptest.Server) {
	t.Helper()
	cfg.Logger = testLogger()
	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)
	return sim, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNew_Defaults(t *testing.T) {
	sim, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	snap := sim.Snapshot()
	if len(snap) != defaultSpots {
		t.Fatalf("len(Snapshot()) = %d, want %d", len(snap), defaultSpots)
	}
	if snap[0].SpotID != "spot_0" || snap[0].Status != "occupied" {
		t.Errorf("Snapshot()[0] = %+v", snap[0])
	}
	if sim.interval != defaultInterval {
		t.Errorf("interval = %s, want %s", sim.interval, defaultInterval)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"negative spots", Config{Spots: -1}, "spots must not be negative"},
		{"negative interval", Config{Interval: -time.Second}, "interval must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSimulator_ClientReceivesStateThenChanges(t *testing.T) {
	sim, srv := newTestSimulator(t, Config{Spots: 3, Statuses: []string{"empty", "occupied"}})
	conn := dial(t, srv)

	var initial []Event
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if len(initial) != 3 || initial[2].SpotID != "spot_2" || initial[2].Status != "empty" {
		t.Fatalf("initial = %+v", initial)
	}

	waitFor(t, func() bool { return sim.Clients() == 1 })
	sim.Publish(Event{SpotID: "spot_1", Status: "occupied"})

	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev != (Event{SpotID: "spot_1", Status: "occupied"}) {
		t.Errorf("event = %+v", ev)
	}
}

func TestSimulator_SpotsEndpoint(t *testing.T) {
	sim, srv := newTestSimulator(t, Config{Spots: 2})
	sim.Publish(Event{SpotID: "spot_1", Status: "expired"})

	resp, err := http.Get(srv.URL + "/spots")
	if err != nil {
		t.Fatalf("GET /spots error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got []Event
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []Event{{"spot_0", "occupied"}, {"spot_1", "expired"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("GET /spots = %+v, want %+v", got, want)
	}
}

func TestSimulator_RunPublishesAndClosesClients(t *testing.T) {
	sim, srv := newTestSimulator(t, Config{Spots: 1, Interval: 10 * time.Millisecond, Seed: 7})
	conn := dial(t, srv)

	var initial []Event
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	waitFor(t, func() bool { return sim.Clients() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.SpotID != "spot_0" {
		t.Errorf("event spot = %q, want spot_0", ev.SpotID)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	// drain until the close frame arrives
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		if !errors.As(err, &ce) || ce.Code != websocket.CloseGoingAway {
			t.Errorf("read error = %v, want going-away close", err)
		}
		break
	}
	if sim.Clients() != 0 {
		t.Errorf("Clients() = %d after Run returned", sim.Clients())
	}
}

func TestSimulator_DisconnectUnregisters(t *testing.T) {
	sim, srv := newTestSimulator(t, Config{Spots: 1})
	conn := dial(t, srv)

	var initial []Event
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	waitFor(t, func() bool { return sim.Clients() == 1 })

	conn.Close()
	waitFor(t, func() bool { return sim.Clients() == 0 })
}

func TestSimulator_SeedIsReproducible(t *testing.T) {
	a, _ := New(Config{Seed: 42, Logger: testLogger()})
	b, _ := New(Config{Seed: 42, Logger: testLogger()})

	for i := 0; i < 20; i++ {
		if ea, eb := a.randomEvent(), b.randomEvent(); ea != eb {
			t.Fatalf("step %d: %+v != %+v", i, ea, eb)
		}
	}
}
