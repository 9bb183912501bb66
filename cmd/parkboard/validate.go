package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/parkboard/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a ParkBoard configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  parkboard validate -c config.yaml
  parkboard validate --config /etc/parkboard/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Count total spots (explicit + from blocks)
	explicitSpots := len(cfg.Spots)
	blockSpots := 0
	for _, b := range cfg.SpotBlocks {
		blockSpots += b.Count
	}

	feed := "none"
	if cfg.Feed != nil {
		feed = fmt.Sprintf("%s %s", cfg.Feed.Kind, cfg.Feed.URL)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:      %d\n", cfg.Port)
	fmt.Printf("  Locations: %d\n", len(cfg.Locations))
	fmt.Printf("  Spots:     %d explicit + %d from blocks = %d total\n",
		explicitSpots, blockSpots, explicitSpots+blockSpots)
	fmt.Printf("  Sessions:  %d\n", len(cfg.Sessions))
	fmt.Printf("  Users:     %d\n", len(cfg.Users))
	fmt.Printf("  Feed:      %s\n", feed)

	return nil
}
