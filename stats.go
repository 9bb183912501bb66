package parkboard

import (
	"math"
	"time"
)

// SessionStatus is the lifecycle state of a parking session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// PaymentStatus is the payment state of a parking session.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

// Session is a recorded parking session.
type Session struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId,omitempty"`
	UserName      string        `json:"userName,omitempty"`
	LocationID    string        `json:"locationId"`
	SpotID        string        `json:"spotId"`
	SpotNumber    string        `json:"spotNumber,omitempty"`
	Zone          string        `json:"zone,omitempty"`
	Start         time.Time     `json:"startTime"`
	End           *time.Time    `json:"endTime,omitempty"`
	Status        SessionStatus `json:"status"`
	Amount        float64       `json:"amount"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
}

// User is a registered driver shown in the user table.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	TotalSessions int       `json:"totalSessions"`
	TotalSpent    float64   `json:"totalSpent"`
	JoinDate      time.Time `json:"joinDate"`
	LastActive    time.Time `json:"lastActive"`
}

// Stats summarises fixtures for the dashboard header.
type Stats struct {
	// TotalRevenue sums the amounts of paid sessions only.
	TotalRevenue float64 `json:"totalRevenue"`

	ActiveSessions int `json:"activeSessionsCount"`
	OccupiedSpots  int `json:"occupiedSpotsCount"`
	TotalSpots     int `json:"totalSpotsCount"`

	// OccupancyRate is OccupiedSpots / TotalSpots as a whole percent,
	// rounded half away from zero. Zero when there are no spots.
	OccupancyRate int `json:"occupancyRate"`
}

// ComputeStats derives [Stats] from static fixtures.
//
// Occupancy counts spots whose static status is occupied; live data and
// overdue detection are not applied here.
func ComputeStats(spots []Spot, sessions []Session) Stats {
	var s Stats
	for _, sess := range sessions {
		if sess.PaymentStatus == PaymentPaid {
			s.TotalRevenue += sess.Amount
		}
		if sess.Status == SessionActive {
			s.ActiveSessions++
		}
	}
	for _, spot := range spots {
		if spot.Status == SpotOccupied {
			s.OccupiedSpots++
		}
	}
	s.TotalSpots = len(spots)
	if s.TotalSpots > 0 {
		s.OccupancyRate = int(math.Round(float64(s.OccupiedSpots) / float64(s.TotalSpots) * 100))
	}
	// cents, to keep float sums presentable
	s.TotalRevenue = math.Round(s.TotalRevenue*100) / 100
	return s
}

// Occupancy is the displayed availability of one location.
type Occupancy struct {
	LocationID string `json:"locationId"`
	Available  int    `json:"available"`
	Occupied   int    `json:"occupied"`
	Expired    int    `json:"expired"`
	Total      int    `json:"total"`
}

// LocationOccupancy counts displayed statuses per location using the same
// resolution as [RenderGrid], so a tracked location reflects live data.
// The result follows the order of locations.
func LocationOccupancy(locations []Location, spots []Spot, live LiveSnapshot, opts ...RenderOption) []Occupancy {
	out := make([]Occupancy, 0, len(locations))
	for _, loc := range locations {
		grid := RenderGrid(spots, loc.ID, live, opts...)
		out = append(out, Occupancy{
			LocationID: loc.ID,
			Available:  grid.Counts.Available,
			Occupied:   grid.Counts.Occupied,
			Expired:    grid.Counts.Expired,
			Total:      grid.Counts.Total(),
		})
	}
	return out
}
