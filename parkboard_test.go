package parkboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// feedServer is a WebSocket feed that sends the given frames and then
// holds the connection open until the client goes away.
type feedServer struct {
	*httptest.Server
	opened atomic.Int32
	closed atomic.Int32
}

func newFeedServer(t *testing.T, frames ...string) *feedServer {
	t.Helper()
	fs := &feedServer{}
	upgrader := websocket.Upgrader{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.opened.Add(1)
		defer func() {
			_ = conn.Close()
			fs.closed.Add(1)
		}()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// block until the client closes the connection
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.URL, "http")
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// freePort returns a port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}

func newTestBoard(t *testing.T, opts ...Option) *ParkBoard {
	t.Helper()
	base := []Option{
		WithLocations(testLocations()...),
		WithSpots(validSpots()...),
		WithLogger(testLogger()),
	}
	pb, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return pb
}

func TestMount_AppliesFeedToStore(t *testing.T) {
	fs := newFeedServer(t,
		`{"spotId":"spot_1","status":"empty"}`,
		`[{"spotId":"spot_0","status":"OCCUPIED"},{"spotId":"spot_2","status":"expired"}]`,
	)
	f, err := NewFeed(FeedWebSocket, fs.wsURL())
	if err != nil {
		t.Fatalf("NewFeed() error = %v", err)
	}
	pb := newTestBoard(t, WithFeed(f))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unmount, err := pb.Mount(ctx)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	defer unmount()

	ok := waitFor(t, 2*time.Second, func() bool {
		return len(pb.Snapshot().Statuses) == 3
	})
	if !ok {
		t.Fatalf("store never received all events: %+v", pb.Snapshot())
	}

	snap := pb.Snapshot()
	if snap.Health != HealthConnected {
		t.Errorf("Health = %q, want connected", snap.Health)
	}
	if snap.Statuses["spot_0"] != LiveOccupied {
		t.Errorf("spot_0 = %q, want occupied", snap.Statuses["spot_0"])
	}

	grid, err := pb.Grid("loc4")
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	if grid.Banner.Text != "Live" {
		t.Errorf("Banner.Text = %q, want Live", grid.Banner.Text)
	}
	if grid.Counts.Available != 1 || grid.Counts.Occupied != 1 {
		t.Errorf("Counts = %+v", grid.Counts)
	}
}

func TestMount_UnmountClosesExactlyOnce(t *testing.T) {
	fs := newFeedServer(t)
	f, err := NewFeed(FeedWebSocket, fs.wsURL())
	if err != nil {
		t.Fatalf("NewFeed() error = %v", err)
	}
	pb := newTestBoard(t, WithFeed(f))

	unmount, err := pb.Mount(context.Background())
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return fs.opened.Load() == 1 }) {
		t.Fatal("feed connection was never opened")
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unmount()
		}()
	}
	wg.Wait()

	if !waitFor(t, 2*time.Second, func() bool { return fs.closed.Load() == 1 }) {
		t.Fatalf("closed = %d, want 1", fs.closed.Load())
	}
	if fs.opened.Load() != 1 {
		t.Errorf("opened = %d, want 1", fs.opened.Load())
	}

	// nothing reaches the store after unmount
	version := pb.Snapshot().Version
	time.Sleep(50 * time.Millisecond)
	if got := pb.Snapshot().Version; got != version {
		t.Errorf("store changed after unmount: version %d -> %d", version, got)
	}
}

func TestMount_SecondMountFailsUntilUnmounted(t *testing.T) {
	fs := newFeedServer(t)
	f, err := NewFeed(FeedWebSocket, fs.wsURL())
	if err != nil {
		t.Fatalf("NewFeed() error = %v", err)
	}
	pb := newTestBoard(t, WithFeed(f))

	unmount, err := pb.Mount(context.Background())
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return fs.opened.Load() == 1 }) {
		t.Fatal("feed connection was never opened")
	}

	if _, err := pb.Mount(context.Background()); !errors.Is(err, ErrAlreadyMounted) {
		t.Fatalf("second Mount() error = %v, want %v", err, ErrAlreadyMounted)
	}
	time.Sleep(50 * time.Millisecond)
	if got := fs.opened.Load(); got != 1 {
		t.Errorf("opened = %d after rejected mount, want 1", got)
	}

	unmount()

	remount, err := pb.Mount(context.Background())
	if err != nil {
		t.Fatalf("Mount() after unmount error = %v", err)
	}
	defer remount()
	if !waitFor(t, 2*time.Second, func() bool { return fs.opened.Load() == 2 }) {
		t.Errorf("opened = %d after remount, want 2", fs.opened.Load())
	}
}

func TestMount_NoFeed(t *testing.T) {
	pb := newTestBoard(t)

	unmount, err := pb.Mount(context.Background())
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	unmount()
	unmount()

	if pb.Snapshot().Health != HealthConnecting {
		t.Errorf("Health = %q, want connecting", pb.Snapshot().Health)
	}
}

func TestMount_UnreachableFeedReportsError(t *testing.T) {
	// a closed server refuses connections
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	f, err := NewFeed(FeedWebSocket, url)
	if err != nil {
		t.Fatalf("NewFeed() error = %v", err)
	}
	pb := newTestBoard(t, WithFeed(f))

	unmount, err := pb.Mount(context.Background())
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	defer unmount()

	ok := waitFor(t, 2*time.Second, func() bool { return pb.Snapshot().Health == HealthError })
	if !ok {
		t.Errorf("Health = %q, want error", pb.Snapshot().Health)
	}

	grid, _ := pb.Grid("loc4")
	if !grid.Banner.Warning {
		t.Error("banner should warn on connection error")
	}
}

func TestGrid_UnknownLocation(t *testing.T) {
	pb := newTestBoard(t)

	_, err := pb.Grid("loc9")
	if !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("Grid() error = %v, want ErrUnknownLocation", err)
	}
}

func TestOverview(t *testing.T) {
	pb := newTestBoard(t, WithSessions(
		Session{ID: "session-1", Status: SessionActive, Amount: 4.5, PaymentStatus: PaymentPaid},
	))

	ov := pb.Overview()

	if ov.Stats.TotalRevenue != 4.5 || ov.Stats.ActiveSessions != 1 {
		t.Errorf("Stats = %+v", ov.Stats)
	}
	if len(ov.Locations) != 2 {
		t.Fatalf("got %d location summaries, want 2", len(ov.Locations))
	}
	if ov.Locations[0].Tracked || !ov.Locations[1].Tracked {
		t.Errorf("tracked flags = %v, %v; want loc4 only", ov.Locations[0].Tracked, ov.Locations[1].Tracked)
	}
	if ov.Locations[1].Occupancy.Total != 4 {
		t.Errorf("loc4 total = %d, want 4", ov.Locations[1].Occupancy.Total)
	}
	if ov.Health != HealthConnecting {
		t.Errorf("Health = %q, want connecting", ov.Health)
	}
}

func TestHandler_Routes(t *testing.T) {
	pb := newTestBoard(t, WithTitle("Campus <Parking>"), WithUsers(User{ID: "user-12", Name: "User 12"}))
	handler, err := pb.Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{path: "/", wantCode: http.StatusOK, contains: "Campus &lt;Parking&gt;"},
		{path: "/", wantCode: http.StatusOK, contains: "University Parking"},
		{path: "/locations/loc4", wantCode: http.StatusOK, contains: "Connecting..."},
		{path: "/locations/loc1", wantCode: http.StatusOK, contains: "Downtown Parking"},
		{path: "/locations/loc9", wantCode: http.StatusNotFound},
		{path: "/api/locations/loc4/grid", wantCode: http.StatusOK, contains: `"tracked":true`},
		{path: "/api/live", wantCode: http.StatusOK, contains: `"health":"connecting"`},
		{path: "/api/stats", wantCode: http.StatusOK, contains: `"totalSpotsCount":5`},
		{path: "/api/users", wantCode: http.StatusOK, contains: `"name":"User 12"`},
		{path: "/metrics", wantCode: http.StatusOK, contains: "parkboard_grid_renders_total"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body should contain %q", tt.contains)
			}
		})
	}
}

func TestHandler_GridJSON(t *testing.T) {
	pb := newTestBoard(t)
	handler, err := pb.Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/locations/loc4/grid", nil))

	var grid Grid
	if err := json.NewDecoder(rec.Body).Decode(&grid); err != nil {
		t.Fatalf("decode grid: %v", err)
	}
	if grid.LocationID != "loc4" || len(grid.Zones) == 0 {
		t.Errorf("grid = %+v", grid)
	}
}

// TestStart_BlocksUntilContextCancelled verifies that Start blocks until the
// provided context is cancelled.
func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	pb := newTestBoard(t, WithPort(freePort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pb.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

// TestStart_ReturnsImmediatelyIfContextAlreadyCancelled verifies that Start
// returns immediately if the context is already cancelled.
func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	pb := newTestBoard(t, WithPort(freePort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := pb.Start(ctx); err != nil {
		t.Errorf("Start() returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Start() took %v with cancelled context", elapsed)
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	pb := newTestBoard(t, WithPort(ln.Addr().(*net.TCPAddr).Port))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = pb.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "failed to start HTTP server") {
		t.Errorf("Start() error = %v, want bind failure", err)
	}
}

func TestStart_InvokesLiveCallbacks(t *testing.T) {
	fs := newFeedServer(t, `{"spotId":"spot_3","status":"occupied"}`)
	f, err := NewFeed(FeedWebSocket, fs.wsURL())
	if err != nil {
		t.Fatalf("NewFeed() error = %v", err)
	}

	var mu sync.Mutex
	var seen []LiveSnapshot
	pb := newTestBoard(t,
		WithFeed(f),
		WithPort(freePort(t)),
		WithLiveCallback(func(s LiveSnapshot) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, s)
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pb.Start(ctx)
	}()

	ok := waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1].Statuses["spot_3"] == LiveOccupied
	})
	cancel()
	<-done

	if !ok {
		t.Fatal("callback never saw spot_3")
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i].Version <= seen[i-1].Version {
			t.Errorf("versions not increasing: %d then %d", seen[i-1].Version, seen[i].Version)
		}
	}
	if last := seen[len(seen)-1]; last.Health != HealthConnected {
		t.Errorf("last health = %q, want connected", last.Health)
	}
	if !waitFor(t, 2*time.Second, func() bool { return fs.closed.Load() == 1 }) {
		t.Errorf("feed closed %d times after shutdown, want 1", fs.closed.Load())
	}
}

func TestInvokeCallbackSafe_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	invokeCallbackSafe(func(LiveSnapshot) {
		panic("boom")
	}, EmptySnapshot(), logger)

	out := buf.String()
	if !strings.Contains(out, "live callback panicked") {
		t.Errorf("log = %q, want panic message", out)
	}
	if !strings.Contains(out, `"correlation_id"`) {
		t.Errorf("log = %q, want correlation id", out)
	}
}

func TestStart_CallbackPanicDoesNotStopUpdates(t *testing.T) {
	fs := newFeedServer(t, `{"spotId":"spot_1","status":"empty"}`)
	f, err := NewFeed(FeedWebSocket, fs.wsURL())
	if err != nil {
		t.Fatalf("NewFeed() error = %v", err)
	}

	var calls atomic.Int32
	pb := newTestBoard(t,
		WithFeed(f),
		WithPort(freePort(t)),
		WithLiveCallback(func(LiveSnapshot) { panic("first callback always fails") }),
		WithLiveCallback(func(LiveSnapshot) { calls.Add(1) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pb.Start(ctx)
	}()

	ok := waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 2 })
	cancel()
	<-done

	if !ok {
		t.Errorf("second callback ran %d times, want at least 2", calls.Load())
	}
}
