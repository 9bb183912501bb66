package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// handleSSE streams the rendered grid of one location via Server-Sent Events.
//
// The current grid is sent on connect, then one grid per store change. The
// handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would
// prevent the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.source.Location(id); !ok {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}

	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	sendGrid := func() error {
		grid, ok := s.source.Grid(id)
		if !ok {
			return fmt.Errorf("location %q disappeared", id)
		}
		data, err := json.Marshal(grid)
		if err != nil {
			s.logger.Error("failed to encode grid", "location", id, "error", err)
			return nil
		}
		return writeAndFlush(data)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the initial send so no change is missed in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	if err := sendGrid(); err != nil {
		return
	}

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
			// the grid is re-rendered from the latest snapshot, so skipping
			// buffered intermediate snapshots loses nothing
			drainPending(ch)
			if err := sendGrid(); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

// drainPending empties whatever is buffered on ch without blocking.
func drainPending[T any](ch <-chan T) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
