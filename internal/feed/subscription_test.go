package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport opens a pretend connection, emits scripted messages and
// counts how often the connection is released.
type fakeTransport struct {
	script []Message
	err    error
	// returnEarly makes Run return right after the script instead of
	// waiting for ctx.
	returnEarly bool
	panicWith   interface{}

	opened atomic.Int32
	closed atomic.Int32
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Run(ctx context.Context, emit func(Message)) error {
	f.opened.Add(1)
	defer f.closed.Add(1)

	if f.panicWith != nil {
		panic(f.panicWith)
	}

	emit(Message{Kind: KindOpen})
	for _, msg := range f.script {
		emit(msg)
	}
	if f.returnEarly {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func drain(t *testing.T, sub *Subscription) []Message {
	t.Helper()
	var got []Message
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return got
			}
			got = append(got, msg)
		case <-timeout:
			t.Fatal("timeout waiting for messages channel to close")
			return got
		}
	}
}

func kinds(msgs []Message) []Kind {
	out := make([]Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func equalKinds(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscription_EmitsConnectingFirst(t *testing.T) {
	ft := &fakeTransport{script: []Message{
		{Kind: KindEvent, Event: Event{SpotID: "spot_1", Status: "occupied"}},
	}}

	sub := Subscribe(context.Background(), ft, testLogger())
	waitFor(t, func() bool { return len(sub.Messages()) >= 3 })
	sub.Close()

	got := kinds(drain(t, sub))
	want := []Kind{KindConnecting, KindOpen, KindEvent}
	if !equalKinds(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestSubscription_StampsMessages(t *testing.T) {
	ft := &fakeTransport{}
	sub := Subscribe(context.Background(), ft, testLogger())
	waitFor(t, func() bool { return len(sub.Messages()) >= 2 })
	sub.Close()

	for _, msg := range drain(t, sub) {
		if msg.At.IsZero() {
			t.Errorf("%s message has zero At", msg.Kind)
		}
	}
}

// TestSubscription_CloseReleasesConnectionOnce verifies that unmount closes
// the open connection exactly once, however often Close is called.
func TestSubscription_CloseReleasesConnectionOnce(t *testing.T) {
	ft := &fakeTransport{}
	sub := Subscribe(context.Background(), ft, testLogger())
	waitFor(t, func() bool { return ft.opened.Load() == 1 })

	sub.Close()
	sub.Close()
	sub.Close()

	if got := ft.closed.Load(); got != 1 {
		t.Errorf("connection closed %d times, want 1", got)
	}
}

func TestSubscription_ConcurrentClose(t *testing.T) {
	ft := &fakeTransport{}
	sub := Subscribe(context.Background(), ft, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Close()
		}()
	}
	wg.Wait()

	if opened, closed := ft.opened.Load(), ft.closed.Load(); opened != closed {
		t.Errorf("opened %d, closed %d", opened, closed)
	}
	if got := ft.closed.Load(); got > 1 {
		t.Errorf("connection closed %d times, want at most 1", got)
	}
}

// TestSubscription_CancelledBeforeStart verifies the interrupted-start case:
// no transport runs and Close still returns.
func TestSubscription_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ft := &fakeTransport{}
	sub := Subscribe(ctx, ft, testLogger())
	sub.Close()

	if got := drain(t, sub); len(got) != 0 {
		t.Errorf("received %d messages, want 0", len(got))
	}
	if ft.opened.Load() != 0 {
		t.Error("transport should not run when ctx is already done")
	}
}

func TestSubscription_ParentCancelClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ft := &fakeTransport{}
	sub := Subscribe(ctx, ft, testLogger())
	waitFor(t, func() bool { return ft.opened.Load() == 1 })

	cancel()
	drain(t, sub)

	if got := ft.closed.Load(); got != 1 {
		t.Errorf("connection closed %d times, want 1", got)
	}
	sub.Close()
}

func TestSubscription_TransportOutcome(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantLast Kind
	}{
		{name: "failure", err: errors.New("connection reset"), wantLast: KindError},
		{name: "remote close", err: nil, wantLast: KindClose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{err: tt.err, returnEarly: true}
			sub := Subscribe(context.Background(), ft, testLogger())
			defer sub.Close()

			msgs := drain(t, sub)
			if len(msgs) == 0 {
				t.Fatal("no messages received")
			}
			last := msgs[len(msgs)-1]
			if last.Kind != tt.wantLast {
				t.Errorf("last kind = %s, want %s", last.Kind, tt.wantLast)
			}
			if last.Err == nil {
				t.Error("last message should carry an error")
			}
			if tt.err != nil && !errors.Is(last.Err, tt.err) {
				t.Errorf("Err = %v, want %v", last.Err, tt.err)
			}
			if tt.err == nil && !errors.Is(last.Err, ErrClosedByRemote) {
				t.Errorf("Err = %v, want ErrClosedByRemote", last.Err)
			}
		})
	}
}

func TestSubscription_TransportPanicRecovery(t *testing.T) {
	ft := &fakeTransport{panicWith: "boom"}
	sub := Subscribe(context.Background(), ft, testLogger())
	defer sub.Close()

	msgs := drain(t, sub)
	if len(msgs) == 0 {
		t.Fatal("no messages received")
	}
	last := msgs[len(msgs)-1]
	if last.Kind != KindError {
		t.Fatalf("last kind = %s, want error", last.Kind)
	}
	if !strings.Contains(last.Err.Error(), "correlation_id") {
		t.Errorf("error %q should contain correlation_id", last.Err)
	}
	if ft.closed.Load() != 1 {
		t.Error("panicking transport should still release its connection")
	}
}

func TestSubscription_IDIsUnique(t *testing.T) {
	a := Subscribe(context.Background(), &fakeTransport{}, testLogger())
	b := Subscribe(context.Background(), &fakeTransport{}, testLogger())
	defer a.Close()
	defer b.Close()

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("IDs = %q, %q; want distinct non-empty", a.ID(), b.ID())
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindEvent, "event"},
		{KindConnecting, "connecting"},
		{KindOpen, "open"},
		{KindClose, "close"},
		{KindError, "error"},
		{KindInvalid, "invalid"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
