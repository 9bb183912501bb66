package parkboard

import (
	"time"

	"github.com/jpalmerr/parkboard/internal/store"
)

// liveKeyPrefix is the spot identifier prefix used by the live feed.
const liveKeyPrefix = "spot_"

// Location is a parking location.
type Location struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address,omitempty"`
	TotalSpots   int     `json:"totalSpots"`
	PricePerHour float64 `json:"pricePerHour"`
	Rating       float64 `json:"rating,omitempty"`
	Distance     string  `json:"distance,omitempty"`
}

// Spot is a single parking spot with its static status.
//
// OccupiedSince and OccupiedUntil are optional. An occupied spot whose
// OccupiedUntil lies in the past is displayed as expired.
type Spot struct {
	ID            string     `json:"id"`
	LocationID    string     `json:"locationId"`
	Number        string     `json:"spotNumber"`
	Zone          string     `json:"zone"`
	Status        SpotStatus `json:"status"`
	OccupiedSince *time.Time `json:"occupiedSince,omitempty"`
	OccupiedUntil *time.Time `json:"occupiedUntil,omitempty"`
	Accessible    bool       `json:"isAccessible"`
	UserName      string     `json:"userName,omitempty"`
	Vehicle       string     `json:"vehicle,omitempty"`
	Price         float64    `json:"price,omitempty"`
}

// LiveKey returns the identifier the live feed uses for this spot,
// e.g. "spot_7". The number is used verbatim, so "07" maps to "spot_07".
func (s Spot) LiveKey() string {
	return liveKeyPrefix + s.Number
}

// LiveSnapshot is a read-only view of the live status store.
type LiveSnapshot struct {
	// Statuses maps live keys (see [Spot.LiveKey]) to their last status.
	Statuses map[string]LiveStatus `json:"statuses"`

	// Health is the current feed connection health.
	Health ConnectionHealth `json:"health"`

	// Version increases with every change to the store.
	Version uint64 `json:"version"`

	// UpdatedAt is the time of the last change. Zero before the first one.
	UpdatedAt time.Time `json:"updatedAt"`
}

// EmptySnapshot returns a snapshot with no live entries and health
// [HealthConnecting], the state before any feed message.
func EmptySnapshot() LiveSnapshot {
	return LiveSnapshot{
		Statuses: map[string]LiveStatus{},
		Health:   HealthConnecting,
	}
}

// Lookup returns the live status stored for key. Unknown values are
// reported as missing.
func (s LiveSnapshot) Lookup(key string) (LiveStatus, bool) {
	status, ok := s.Statuses[key]
	if !ok || status == LiveUnknown {
		return "", false
	}
	return status, true
}

// snapshotFromStore converts the store's raw snapshot.
func snapshotFromStore(snap store.Snapshot) LiveSnapshot {
	statuses := make(map[string]LiveStatus, len(snap.Statuses))
	for k, v := range snap.Statuses {
		statuses[k] = ParseLiveStatus(v)
	}
	return LiveSnapshot{
		Statuses:  statuses,
		Health:    ConnectionHealth(snap.Health),
		Version:   snap.Version,
		UpdatedAt: snap.UpdatedAt,
	}
}
