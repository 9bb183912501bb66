// Package main is the entry point for the parkboard CLI.
//
// ParkBoard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	parkboard serve -c config.yaml            # Start the dashboard
//	parkboard validate -c config.yaml         # Validate configuration
//	parkboard grid -c config.yaml -l loc4     # Print a spot grid
//	parkboard simulate --spots 10             # Run a fake live feed
//	parkboard version                         # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/jpalmerr/parkboard/internal/log"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	logOptions = log.NewOptions()
	envFile    string
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "parkboard",
	Short: "A live parking availability dashboard",
	Long: `ParkBoard is a parking availability dashboard.

It shows the spots of every configured location as a color-coded grid,
and follows one tracked location through a live status feed (WebSocket,
MQTT or HTTP polling), pushing changes to the browser with Server-Sent
Events.

Quick start:
  1. Create a config file (parkboard.yaml)
  2. Run: parkboard serve -c parkboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  tracked_location: loc4
  feed:
    kind: websocket
    url: ws://localhost:9000/ws
  locations:
    - id: loc4
      name: University Parking
  spot_blocks:
    - location: loc4
      zone: A
      count: 10`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// variables from .env feed ${VAR} expansion in config files
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return logOptions.Validate()
	},
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger builds the CLI logger from the --log.* flags.
func newLogger() (*slog.Logger, func(), error) {
	logger, sync, err := log.New(logOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, sync, nil
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this parkboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("parkboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config is read; ignored when missing")
	logOptions.AddFlags(rootCmd.PersistentFlags())

	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
