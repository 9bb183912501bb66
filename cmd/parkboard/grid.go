package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/parkboard"
	"github.com/jpalmerr/parkboard/config"
)

// gridCmd prints the spot grid of one location to the terminal.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Print the spot grid of a location",
	Long: `Print the spot grid of a location as a table per zone.

Without --listen the grid shows the configured static statuses. With
--listen the live feed is mounted for the given duration first, so the
tracked location reflects whatever the feed reported in that window.

Example:
  parkboard grid -c config.yaml
  parkboard grid -c config.yaml -l loc1
  parkboard grid -c config.yaml --listen 5s`,
	RunE: runGrid,
}

func init() {
	rootCmd.AddCommand(gridCmd)

	gridCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	gridCmd.Flags().StringP("location", "l", "", "location id (defaults to the tracked location)")
	gridCmd.Flags().Duration("listen", 0, "mount the live feed for this long before rendering")
	gridCmd.Flags().Bool("no-color", false, "disable colored output")
	_ = gridCmd.MarkFlagRequired("config")
}

func runGrid(cmd *cobra.Command, args []string) error {
	logger, sync, err := newLogger()
	if err != nil {
		return err
	}
	defer sync()

	configFile, _ := cmd.Flags().GetString("config")
	locationID, _ := cmd.Flags().GetString("location")
	listen, _ := cmd.Flags().GetDuration("listen")
	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	pb, err := parkboard.New(append(opts, parkboard.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("failed to create ParkBoard: %w", err)
	}

	if locationID == "" {
		locationID = pb.TrackedLocation()
	}

	if listen > 0 {
		unmount, err := pb.Mount(cmd.Context())
		if err != nil {
			return err
		}
		defer unmount()

		select {
		case <-time.After(listen):
		case <-cmd.Context().Done():
		}
	}

	g, err := pb.Grid(locationID)
	if err != nil {
		return err
	}

	printGrid(cmd.OutOrStdout(), g)
	return nil
}

// printGrid writes g as a banner line, one table per zone and a summary.
func printGrid(w io.Writer, g parkboard.Grid) {
	fmt.Fprintf(w, "Location %s\n", g.LocationID)
	if g.Tracked {
		fmt.Fprintf(w, "Feed: %s\n", paint(g.Banner.Color, g.Banner.Text))
	}

	for _, zone := range g.Zones {
		table := uitable.New()
		table.MaxColWidth = 40
		table.AddRow("SPOT", "ZONE", "STATUS", "ACCESSIBLE", "UNTIL")
		for _, c := range zone.Cells {
			label := c.Label
			if label == "" {
				label = "-"
			}
			accessible := ""
			if c.Accessible {
				accessible = "yes"
			}
			table.AddRow(c.Number, c.Zone, paint(c.Color, label), accessible, c.Hint)
		}
		fmt.Fprintf(w, "\nZone %s\n%s\n", zone.Name, table)
	}

	fmt.Fprintf(w, "\n%s %d  %s %d  %s %d  (%d spots)\n",
		paint(parkboard.ColorGreen, parkboard.LabelAvailable), g.Counts.Available,
		paint(parkboard.ColorBlue, parkboard.LabelOccupied), g.Counts.Occupied,
		paint(parkboard.ColorRed, parkboard.LabelExpired), g.Counts.Expired,
		g.Counts.Total(),
	)
}

var palette = map[parkboard.Color]*color.Color{
	parkboard.ColorGreen:  color.New(color.FgGreen),
	parkboard.ColorBlue:   color.New(color.FgBlue),
	parkboard.ColorRed:    color.New(color.FgRed),
	parkboard.ColorYellow: color.New(color.FgYellow),
	parkboard.ColorGray:   color.New(color.FgHiBlack),
}

func paint(c parkboard.Color, s string) string {
	if p, ok := palette[c]; ok {
		return p.Sprint(s)
	}
	return s
}
