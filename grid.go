package parkboard

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Display is the resolved color and label of a single spot.
type Display struct {
	Label string `json:"label"`
	Color Color  `json:"color"`

	// Live reports whether the display came from the live feed rather than
	// the static status.
	Live bool `json:"live"`
}

// unknownDisplay is shown for missing spots and unrecognised statuses.
var unknownDisplay = Display{Label: "", Color: ColorGray}

// ResolveDisplay computes how a spot is shown.
//
// For a tracked location, a known live entry under the spot's live key
// takes precedence over the static status:
//
//	occupied -> Occupied / blue
//	empty    -> Available / green
//	expired  -> Expired / red
//
// Otherwise the static status is used. A static occupied spot whose
// occupied-until time is before now is shown as Expired / red.
//
// A nil spot, or one with an unrecognised static status, is shown in
// neutral gray with an empty label.
func ResolveDisplay(spot *Spot, tracked bool, live LiveSnapshot, now time.Time) Display {
	if spot == nil {
		return unknownDisplay
	}

	if tracked {
		if status, ok := live.Lookup(spot.LiveKey()); ok {
			d := liveDisplay(status)
			d.Live = true
			return d
		}
	}

	switch spot.Status {
	case SpotAvailable:
		return Display{Label: LabelAvailable, Color: ColorGreen}
	case SpotExpired:
		return Display{Label: LabelExpired, Color: ColorRed}
	case SpotOccupied:
		if spot.OccupiedUntil != nil && spot.OccupiedUntil.Before(now) {
			return Display{Label: LabelExpired, Color: ColorRed}
		}
		return Display{Label: LabelOccupied, Color: ColorBlue}
	default:
		return unknownDisplay
	}
}

func liveDisplay(status LiveStatus) Display {
	switch status {
	case LiveOccupied:
		return Display{Label: LabelOccupied, Color: ColorBlue}
	case LiveEmpty:
		return Display{Label: LabelAvailable, Color: ColorGreen}
	case LiveExpired:
		return Display{Label: LabelExpired, Color: ColorRed}
	default:
		return unknownDisplay
	}
}

// Banner is the connection health indicator shown above a tracked grid.
type Banner struct {
	Health ConnectionHealth `json:"health"`
	Text   string           `json:"text"`
	Color  Color            `json:"color"`

	// Warning is true when the banner reports a connection problem.
	Warning bool `json:"warning"`
}

// BannerFor returns the banner for a connection health value.
// Unrecognised values are shown as connecting.
func BannerFor(h ConnectionHealth) Banner {
	switch h {
	case HealthConnected:
		return Banner{Health: h, Text: "Live", Color: ColorGreen}
	case HealthError:
		return Banner{Health: h, Text: "Connection Error", Color: ColorRed, Warning: true}
	default:
		return Banner{Health: HealthConnecting, Text: "Connecting...", Color: ColorYellow}
	}
}

// Cell is a single rendered spot.
type Cell struct {
	SpotID     string `json:"spotId"`
	Number     string `json:"spotNumber"`
	Zone       string `json:"zone"`
	Label      string `json:"label"`
	Color      Color  `json:"color"`
	Accessible bool   `json:"accessible"`
	Live       bool   `json:"live"`

	// Hint is a relative description of the occupied-until time, e.g.
	// "2 hours from now" or "1 hour ago". Empty when not applicable.
	Hint string `json:"hint,omitempty"`
}

// ZoneGroup is a named group of cells sharing a zone prefix.
type ZoneGroup struct {
	Name  string `json:"name"`
	Cells []Cell `json:"cells"`
}

// Counts tallies cells by displayed label.
type Counts struct {
	Available int `json:"available"`
	Occupied  int `json:"occupied"`
	Expired   int `json:"expired"`
	Unknown   int `json:"unknown"`
}

// Total returns the number of counted cells.
func (c Counts) Total() int {
	return c.Available + c.Occupied + c.Expired + c.Unknown
}

// LegendEntry explains one grid color.
type LegendEntry struct {
	Label string `json:"label"`
	Color Color  `json:"color"`
}

// Legend lists the colors a grid uses, in display order.
var Legend = []LegendEntry{
	{Label: LabelAvailable, Color: ColorGreen},
	{Label: LabelOccupied, Color: ColorBlue},
	{Label: LabelExpired, Color: ColorRed},
}

// Grid is the rendered spot grid for one location.
type Grid struct {
	LocationID string `json:"locationId"`

	// Tracked reports whether the location is under live tracking. The
	// banner is only meaningful for tracked grids.
	Tracked bool `json:"tracked"`

	Banner     Banner        `json:"banner"`
	Zones      []ZoneGroup   `json:"zones"`
	Counts     Counts        `json:"counts"`
	Legend     []LegendEntry `json:"legend"`
	Version    uint64        `json:"version"`
	RenderedAt time.Time     `json:"renderedAt"`
}

// RenderGrid renders the spots of one location.
//
// RenderGrid is a pure function of its inputs: spots outside locationID
// are ignored, the remaining spots are grouped by zone prefix (the zone
// label up to the first separator) in first-seen order, and every spot
// lands in exactly one group in input order. Each cell's color and label
// come from [ResolveDisplay].
//
// By default the tracked location is "loc4" and the render time is
// time.Now(); see [WithTrackedLocation] and [WithRenderTime].
func RenderGrid(spots []Spot, locationID string, live LiveSnapshot, opts ...RenderOption) Grid {
	cfg := newRenderConfig(opts)
	tracked := locationID == cfg.trackedLocation

	grid := Grid{
		LocationID: locationID,
		Tracked:    tracked,
		Banner:     BannerFor(live.Health),
		Zones:      []ZoneGroup{},
		Legend:     append([]LegendEntry(nil), Legend...),
		Version:    live.Version,
		RenderedAt: cfg.now,
	}

	index := make(map[string]int)
	for i := range spots {
		spot := &spots[i]
		if spot.LocationID != locationID {
			continue
		}

		d := ResolveDisplay(spot, tracked, live, cfg.now)
		cell := Cell{
			SpotID:     spot.ID,
			Number:     spot.Number,
			Zone:       spot.Zone,
			Label:      d.Label,
			Color:      d.Color,
			Accessible: spot.Accessible,
			Live:       d.Live,
			Hint:       untilHint(spot, d, cfg.now),
		}
		grid.Counts.add(d.Label)

		name := ZonePrefix(spot.Zone, cfg.separator)
		pos, ok := index[name]
		if !ok {
			pos = len(grid.Zones)
			index[name] = pos
			grid.Zones = append(grid.Zones, ZoneGroup{Name: name})
		}
		grid.Zones[pos].Cells = append(grid.Zones[pos].Cells, cell)
	}

	return grid
}

// ZonePrefix returns the part of zone before the first sep. A zone without
// sep is returned unchanged.
func ZonePrefix(zone, sep string) string {
	if sep == "" {
		return zone
	}
	prefix, _, _ := strings.Cut(zone, sep)
	return prefix
}

// untilHint describes the occupied-until time for static displays. Live
// displays carry no hint since the feed has no timing.
func untilHint(spot *Spot, d Display, now time.Time) string {
	if d.Live || spot.OccupiedUntil == nil {
		return ""
	}
	if d.Label != LabelOccupied && d.Label != LabelExpired {
		return ""
	}
	return humanize.RelTime(*spot.OccupiedUntil, now, "ago", "from now")
}

func (c *Counts) add(label string) {
	switch label {
	case LabelAvailable:
		c.Available++
	case LabelOccupied:
		c.Occupied++
	case LabelExpired:
		c.Expired++
	default:
		c.Unknown++
	}
}
