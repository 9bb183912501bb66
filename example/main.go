package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/parkboard"
)

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start mock feed (see mock_server.go)
	if err := startMockFeed(ctx, ":9999"); err != nil {
		slog.Error("failed to start mock feed", "error", err)
		os.Exit(1)
	}
	time.Sleep(100 * time.Millisecond)

	feed, err := parkboard.NewFeed(parkboard.FeedWebSocket, "ws://localhost:9999/ws")
	if err != nil {
		slog.Error("failed to create feed", "error", err)
		os.Exit(1)
	}

	now := time.Now()
	locations := demoLocations()

	pb, err := parkboard.New(
		parkboard.WithTitle("Kingston Parking"),
		parkboard.WithLocations(locations...),
		parkboard.WithSpots(demoSpots(locations, now)...),
		parkboard.WithSessions(demoSessions(now)...),
		parkboard.WithUsers(demoUsers(now)...),
		parkboard.WithFeed(feed),
		parkboard.WithLiveTracking("loc4"),
		parkboard.WithPort(8080),
		parkboard.WithLiveCallback(func(snap parkboard.LiveSnapshot) {
			slog.Info("live update", "health", snap.Health, "spots", len(snap.Statuses))
		}),
	)
	if err != nil {
		slog.Error("failed to create parkboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   ParkBoard Demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Locations:                                          ║")
	fmt.Println("  ║   • 3 static (Downtown, Waterfront, City Center)      ║")
	fmt.Println("  ║   • 1 live (University Parking, mock feed on :9999)   ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	if err := pb.Start(ctx); err != nil {
		slog.Error("parkboard error", "error", err)
		os.Exit(1)
	}
}

func demoLocations() []parkboard.Location {
	return []parkboard.Location{
		{ID: "loc1", Name: "Downtown Parking", Address: "123 Main St, Kingston", TotalSpots: 50, PricePerHour: 2.5, Rating: 4.8, Distance: "0.3 km"},
		{ID: "loc2", Name: "Waterfront Garage", Address: "456 Harbor Dr, Kingston", TotalSpots: 75, PricePerHour: 3.0, Rating: 4.5, Distance: "0.7 km"},
		{ID: "loc3", Name: "City Center Parking", Address: "789 Center Ave, Kingston", TotalSpots: 30, PricePerHour: 2.75, Rating: 4.3, Distance: "1.2 km"},
		{ID: "loc4", Name: "University Parking", Address: "101 College Rd, Kingston", TotalSpots: 10, PricePerHour: 1.5, Rating: 4.0, Distance: "2.0 km"},
	}
}

// demoSpots fills every location. Static locations cycle through the three
// statuses; the tracked location starts available with numbers 0 .. 9 so
// its live keys match the mock feed.
func demoSpots(locations []parkboard.Location, now time.Time) []parkboard.Spot {
	zones := []string{"A", "B", "C"}
	statuses := []parkboard.SpotStatus{parkboard.SpotAvailable, parkboard.SpotOccupied, parkboard.SpotOccupied, parkboard.SpotExpired}

	var spots []parkboard.Spot
	for li, loc := range locations {
		for i := 0; i < loc.TotalSpots; i++ {
			number := fmt.Sprintf("%02d", i+1)
			status := statuses[(i+li)%len(statuses)]
			if loc.ID == "loc4" {
				number = fmt.Sprintf("%d", i)
				status = parkboard.SpotAvailable
			}

			spot := parkboard.Spot{
				ID:         fmt.Sprintf("spot-%s-%d", loc.ID, i+1),
				LocationID: loc.ID,
				Number:     number,
				Zone:       fmt.Sprintf("%s-%s", zones[i*len(zones)/loc.TotalSpots], number),
				Status:     status,
				Accessible: i%10 == 0,
				Price:      loc.PricePerHour,
			}
			if status == parkboard.SpotOccupied {
				since := now.Add(-time.Duration(i%3+1) * time.Hour)
				until := now.Add(time.Duration(i%5-1) * time.Hour)
				spot.OccupiedSince = &since
				spot.OccupiedUntil = &until
			}
			spots = append(spots, spot)
		}
	}
	return spots
}

func demoSessions(now time.Time) []parkboard.Session {
	end := now.Add(-30 * time.Minute)
	return []parkboard.Session{
		{
			ID: "session-1", UserName: "User 12", LocationID: "loc1", SpotID: "spot-loc1-2",
			Start: now.Add(-2 * time.Hour), Status: parkboard.SessionActive,
			Amount: 5.0, PaymentStatus: parkboard.PaymentPaid, PaymentMethod: "Credit Card",
		},
		{
			ID: "session-2", UserName: "User 7", LocationID: "loc2", SpotID: "spot-loc2-3",
			Start: now.Add(-3 * time.Hour), End: &end, Status: parkboard.SessionCompleted,
			Amount: 7.5, PaymentStatus: parkboard.PaymentPaid, PaymentMethod: "PayPal",
		},
		{
			ID: "session-3", UserName: "User 3", LocationID: "loc3", SpotID: "spot-loc3-4",
			Start: now.Add(-time.Hour), Status: parkboard.SessionActive,
			Amount: 2.75, PaymentStatus: parkboard.PaymentPending, PaymentMethod: "Apple Pay",
		},
	}
}

func demoUsers(now time.Time) []parkboard.User {
	return []parkboard.User{
		{ID: "user-12", Name: "User 12", Email: "user12@example.com", Phone: "555-0112", TotalSessions: 14, TotalSpent: 63.5, JoinDate: now.AddDate(0, -8, 0), LastActive: now.Add(-2 * time.Hour)},
		{ID: "user-7", Name: "User 7", Email: "user7@example.com", TotalSessions: 5, TotalSpent: 22.0, JoinDate: now.AddDate(0, -3, 0), LastActive: now.Add(-30 * time.Minute)},
		{ID: "user-3", Name: "User 3", Email: "user3@example.com", TotalSessions: 2, TotalSpent: 5.5, JoinDate: now.AddDate(0, 0, -10), LastActive: now.Add(-time.Hour)},
	}
}
