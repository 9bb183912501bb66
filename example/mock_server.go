package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jpalmerr/parkboard/internal/simulator"
)

// startMockFeed runs a simulated live feed for the tracked location until
// ctx is done. Spots spot_0 .. spot_9 change status every 3 seconds.
func startMockFeed(ctx context.Context, addr string) error {
	sim, err := simulator.New(simulator.Config{
		Spots:    10,
		Interval: 3 * time.Second,
		Logger:   slog.Default().With("component", "mock-feed"),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: addr, Handler: sim.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock feed error", "error", err)
		}
	}()
	go func() {
		_ = sim.Run(ctx)
		_ = srv.Close()
	}()
	return nil
}
