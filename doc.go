// Package parkboard provides an embeddable parking dashboard with live spot
// tracking.
//
// ParkBoard renders the spots of each parking location as a colored grid.
// One location is under live tracking: its spots follow a live status feed
// (WebSocket, MQTT or HTTP polling) while all other locations show their
// static fixture status. A banner above the tracked grid reports the health
// of the feed connection.
//
// # Quick Start
//
//	f, _ := parkboard.NewFeed(parkboard.FeedWebSocket, "ws://localhost:9000/ws")
//	pb, _ := parkboard.New(
//	    parkboard.WithLocations(locations...),
//	    parkboard.WithSpots(spots...),
//	    parkboard.WithFeed(f),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	pb.Start(ctx) // blocks until context is cancelled
//
// # Rendering
//
// [RenderGrid] is a pure function of spots, a location id and a
// [LiveSnapshot], so it can be used without a running ParkBoard:
//
//	grid := parkboard.RenderGrid(spots, "loc4", snapshot,
//	    parkboard.WithTrackedLocation("loc4"),
//	)
//
// Display resolution for a spot, in order:
//
//   - tracked location with a known live entry: occupied is blue, empty is
//     green, expired is red
//   - static occupied with an occupied-until time in the past: red Expired
//   - static status: available green, occupied blue, expired red
//   - anything else: gray with no label
//
// # Live Feed
//
// The feed is mounted by [ParkBoard.Start] or explicitly via
// [ParkBoard.Mount]. Every message updates the live store, whose
// connection health moves between connecting, connected and error. Each
// feed message is a JSON object, or an array of objects, carrying a spot
// id ("spot_7") and a status ("occupied", "empty" or "expired"); the field
// paths are configurable with [WithFeedFields].
//
// # Architecture
//
//   - internal/feed: transports and the subscription lifecycle
//   - internal/store: live status store with connection health and pub/sub
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - internal/metrics: Prometheus metrics for the feed and renderer
//   - dashboard: embedded page templates
package parkboard
