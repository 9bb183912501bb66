package parkboard

import (
	"strings"

	"github.com/jpalmerr/parkboard/internal/store"
)

// SpotStatus is the static status of a spot as recorded in fixtures.
//
// SpotStatus is a string type that can hold one of three predefined values:
// [SpotAvailable], [SpotOccupied] or [SpotExpired].
type SpotStatus string

const (
	// SpotAvailable indicates the spot is free.
	SpotAvailable SpotStatus = "available"

	// SpotOccupied indicates a vehicle holds the spot. An occupied spot whose
	// occupied-until time has passed is displayed as expired.
	SpotOccupied SpotStatus = "occupied"

	// SpotExpired indicates the parking time has run out.
	SpotExpired SpotStatus = "expired"
)

// String returns the string representation of the status.
func (s SpotStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the three known static statuses.
func (s SpotStatus) Valid() bool {
	switch s {
	case SpotAvailable, SpotOccupied, SpotExpired:
		return true
	default:
		return false
	}
}

// LiveStatus is a spot status as published by the live feed.
//
// Any feed value outside the three known statuses parses to [LiveUnknown],
// which the renderer treats as if no live entry existed.
type LiveStatus string

const (
	// LiveOccupied indicates the sensor sees a vehicle.
	LiveOccupied LiveStatus = "occupied"

	// LiveEmpty indicates the sensor sees a free spot.
	LiveEmpty LiveStatus = "empty"

	// LiveExpired indicates the parking time has run out.
	LiveExpired LiveStatus = "expired"

	// LiveUnknown is any value the feed sent that is not recognised.
	LiveUnknown LiveStatus = "unknown"
)

// ParseLiveStatus maps a raw feed value to a [LiveStatus].
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseLiveStatus(s string) LiveStatus {
	switch LiveStatus(strings.ToLower(strings.TrimSpace(s))) {
	case LiveOccupied:
		return LiveOccupied
	case LiveEmpty:
		return LiveEmpty
	case LiveExpired:
		return LiveExpired
	default:
		return LiveUnknown
	}
}

// String returns the string representation of the status.
func (s LiveStatus) String() string {
	return string(s)
}

// ConnectionHealth reflects the state of the live feed subscription, not
// the freshness of its data.
type ConnectionHealth string

const (
	// HealthConnecting is the initial state and the state while a transport
	// is (re)establishing its connection.
	HealthConnecting ConnectionHealth = ConnectionHealth(store.HealthConnecting)

	// HealthConnected means the handshake succeeded or a message arrived.
	HealthConnected ConnectionHealth = ConnectionHealth(store.HealthConnected)

	// HealthError means the transport failed or closed unexpectedly.
	HealthError ConnectionHealth = ConnectionHealth(store.HealthError)
)

// String returns the string representation of the health.
func (h ConnectionHealth) String() string {
	return string(h)
}

// Color is a display color for a spot cell or the health banner.
type Color string

const (
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorRed    Color = "red"
	ColorGray   Color = "gray"
	ColorYellow Color = "yellow"
)

// String returns the string representation of the color.
func (c Color) String() string {
	return string(c)
}

// Display labels.
const (
	LabelAvailable = "Available"
	LabelOccupied  = "Occupied"
	LabelExpired   = "Expired"
)
