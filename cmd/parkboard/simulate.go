package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/parkboard/internal/simulator"
)

// simulateCmd runs a fake live feed for local development.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated live status feed",
	Long: `Run a WebSocket server that changes random spot statuses.

Spots are keyed spot_0 .. spot_N-1, matching the spot numbers of a tracked
location built from an unpadded spot block. Point a websocket feed at
ws://<addr>/ws, or an http feed at http://<addr>/spots.

Example:
  parkboard simulate
  parkboard simulate --addr :9000 --spots 10 --interval 1s`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().String("addr", ":9000", "listen address")
	simulateCmd.Flags().Int("spots", 10, "number of simulated spots")
	simulateCmd.Flags().Duration("interval", 2*time.Second, "time between status changes")
	simulateCmd.Flags().Uint64("seed", 0, "random seed (0 picks one from the clock)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger, sync, err := newLogger()
	if err != nil {
		return err
	}
	defer sync()

	addr, _ := cmd.Flags().GetString("addr")
	spots, _ := cmd.Flags().GetInt("spots")
	interval, _ := cmd.Flags().GetDuration("interval")
	seed, _ := cmd.Flags().GetUint64("seed")

	sim, err := simulator.New(simulator.Config{
		Spots:    spots,
		Interval: interval,
		Seed:     seed,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("invalid simulator settings: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sim.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("simulator listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
