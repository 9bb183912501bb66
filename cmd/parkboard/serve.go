package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/parkboard"
	"github.com/jpalmerr/parkboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the ParkBoard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the ParkBoard dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Subscribe to the live feed of the tracked location
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  parkboard serve -c config.yaml
  parkboard serve --config /etc/parkboard/config.yaml --log.format json`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, sync, err := newLogger()
	if err != nil {
		return err
	}
	defer sync()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"locations", len(cfg.Locations),
		"spots", len(cfg.Spots),
		"spot_blocks", len(cfg.SpotBlocks),
		"sessions", len(cfg.Sessions),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, parkboard.WithLogger(logger))

	pb, err := parkboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create ParkBoard: %w", err)
	}

	logger.Info("starting server",
		"port", pb.Port(),
		"tracked_location", pb.TrackedLocation(),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- pb.Start(ctx)
	}()

	return waitForShutdown(ctx, errChan, logger)
}

// waitForShutdown waits for the server to finish, giving it shutdownTimeout
// after ctx is cancelled before giving up.
func waitForShutdown(ctx context.Context, errChan <-chan error, logger *slog.Logger) error {
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
