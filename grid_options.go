package parkboard

import "time"

const (
	// DefaultTrackedLocation is the location under live tracking when none
	// is configured ("University Parking" in the demo fixtures).
	DefaultTrackedLocation = "loc4"

	// DefaultZoneSeparator splits a zone label into its group prefix.
	DefaultZoneSeparator = "-"
)

// renderConfig holds settings during a single [RenderGrid] call.
type renderConfig struct {
	trackedLocation string
	now             time.Time
	separator       string
}

// RenderOption configures [RenderGrid].
//
// Unlike [Option], render options cannot fail: rendering is total and
// always produces a grid.
type RenderOption func(*renderConfig)

func newRenderConfig(opts []RenderOption) renderConfig {
	cfg := renderConfig{
		trackedLocation: DefaultTrackedLocation,
		separator:       DefaultZoneSeparator,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.now.IsZero() {
		cfg.now = time.Now()
	}
	return cfg
}

// WithTrackedLocation sets the location whose spots follow the live feed.
// An empty id disables live tracking for the render.
func WithTrackedLocation(id string) RenderOption {
	return func(cfg *renderConfig) {
		cfg.trackedLocation = id
	}
}

// WithRenderTime fixes the reference time used to detect overdue spots.
//
// Example:
//
//	grid := parkboard.RenderGrid(spots, "loc1", parkboard.EmptySnapshot(),
//	    parkboard.WithRenderTime(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
//	)
func WithRenderTime(t time.Time) RenderOption {
	return func(cfg *renderConfig) {
		cfg.now = t
	}
}

// WithZoneSeparator sets the separator between a zone's group prefix and
// the rest of its label. An empty separator groups by the full label.
func WithZoneSeparator(sep string) RenderOption {
	return func(cfg *renderConfig) {
		cfg.separator = sep
	}
}
