package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_HealthGauge(t *testing.T) {
	m := New()

	if got := testutil.ToFloat64(m.ConnectionHealth.WithLabelValues("connecting")); got != 1 {
		t.Errorf("initial connecting gauge = %v, want 1", got)
	}

	m.HealthChanged("error")

	tests := map[string]float64{"connecting": 0, "connected": 0, "error": 1}
	for state, want := range tests {
		if got := testutil.ToFloat64(m.ConnectionHealth.WithLabelValues(state)); got != want {
			t.Errorf("gauge{state=%q} = %v, want %v", state, got, want)
		}
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.EventApplied("occupied")
	m.EventApplied("occupied")
	m.EventApplied("empty")
	m.InvalidMessage()
	m.GridRendered("loc4")

	if got := testutil.ToFloat64(m.FeedEvents.WithLabelValues("occupied")); got != 2 {
		t.Errorf("events{occupied} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FeedEvents.WithLabelValues("empty")); got != 1 {
		t.Errorf("events{empty} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FeedInvalid); got != 1 {
		t.Errorf("invalid = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GridRenders.WithLabelValues("loc4")); got != 1 {
		t.Errorf("renders{loc4} = %v, want 1", got)
	}
}

func TestMetrics_EventStatusLabelsAreBounded(t *testing.T) {
	m := New()

	for i := 0; i < 500; i++ {
		m.EventApplied(fmt.Sprintf("garbage-%d", i))
	}
	m.EventApplied("Occupied")
	m.EventApplied(" EMPTY ")
	m.EventApplied("expired")

	if got := testutil.CollectAndCount(m.FeedEvents); got > 4 {
		t.Errorf("feed event series = %d, want at most 4", got)
	}
	if got := testutil.ToFloat64(m.FeedEvents.WithLabelValues("unknown")); got != 500 {
		t.Errorf("events{unknown} = %v, want 500", got)
	}
	for _, status := range []string{"occupied", "empty", "expired"} {
		if got := testutil.ToFloat64(m.FeedEvents.WithLabelValues(status)); got != 1 {
			t.Errorf("events{%s} = %v, want 1", status, got)
		}
	}
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// must not panic with duplicate registration
	a := New()
	b := New()
	a.InvalidMessage()

	if got := testutil.ToFloat64(b.FeedInvalid); got != 0 {
		t.Errorf("second registry invalid = %v, want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.EventApplied("expired")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`parkboard_feed_events_total{status="expired"} 1`,
		"parkboard_feed_connection_health",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
