package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPTransport_PollsEvents(t *testing.T) {
	var gotHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"spotId": "spot_1", "status": "occupied"}, {"spotId": "spot_2", "status": "empty"}]`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{
		URL:      srv.URL,
		Headers:  map[string]string{"Authorization": "Bearer token"},
		Interval: time.Hour,
		Logger:   testLogger(),
	})
	sub := Subscribe(context.Background(), tr, testLogger())
	waitFor(t, func() bool { return len(sub.Messages()) >= 4 })
	sub.Close()

	got := kinds(drain(t, sub))
	want := []Kind{KindConnecting, KindOpen, KindEvent, KindEvent}
	if !equalKinds(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
	if h, _ := gotHeader.Load().(string); h != "Bearer token" {
		t.Errorf("Authorization header = %q, want %q", h, "Bearer token")
	}
}

func TestHTTPTransport_HealthFlipsOnlyOnChange(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		// fail, fail, succeed, then succeed forever
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"spotId": "spot_1", "status": "empty"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{
		URL:      srv.URL,
		Interval: 10 * time.Millisecond,
		Logger:   testLogger(),
	})
	sub := Subscribe(context.Background(), tr, testLogger())
	waitFor(t, func() bool { return calls.Load() >= 4 })
	sub.Close()

	got := kinds(drain(t, sub))
	if len(got) < 4 {
		t.Fatalf("kinds = %v, want at least 4", got)
	}
	want := []Kind{KindConnecting, KindError, KindOpen, KindEvent}
	if !equalKinds(got[:4], want) {
		t.Errorf("kinds[:4] = %v, want %v", got[:4], want)
	}
	for _, k := range got[4:] {
		if k != KindEvent {
			t.Errorf("unexpected %s after recovery; only events expected", k)
		}
	}
}

func TestHTTPTransport_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hello": "world"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL, Interval: time.Hour, Logger: testLogger()})
	sub := Subscribe(context.Background(), tr, testLogger())
	waitFor(t, func() bool { return len(sub.Messages()) >= 3 })
	sub.Close()

	got := kinds(drain(t, sub))
	want := []Kind{KindConnecting, KindOpen, KindInvalid}
	if !equalKinds(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{
		URL:      srv.URL,
		Interval: time.Hour,
		Timeout:  50 * time.Millisecond,
		Logger:   testLogger(),
	})
	sub := Subscribe(context.Background(), tr, testLogger())
	waitFor(t, func() bool { return len(sub.Messages()) >= 2 })
	sub.Close()

	got := kinds(drain(t, sub))
	want := []Kind{KindConnecting, KindError}
	if !equalKinds(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestNewMQTTTransport_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MQTTConfig
		wantErr bool
	}{
		{name: "valid", cfg: MQTTConfig{URL: "mqtt://localhost:1883", Topic: "parking/+/status"}},
		{name: "missing topic", cfg: MQTTConfig{URL: "mqtt://localhost:1883"}, wantErr: true},
		{name: "missing host", cfg: MQTTConfig{URL: "localhost", Topic: "t"}, wantErr: true},
		{name: "bad qos", cfg: MQTTConfig{URL: "mqtt://localhost:1883", Topic: "t", QoS: 3}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewMQTTTransport(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewMQTTTransport() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMQTTTransport() unexpected error: %v", err)
			}
			if tr.Name() != "mqtt" {
				t.Errorf("Name() = %q, want mqtt", tr.Name())
			}
			if tr.cfg.ClientID == "" {
				t.Error("ClientID should default to a generated id")
			}
		})
	}
}
