// Package server provides the HTTP server for the ParkBoard dashboard and API.
//
// This package is internal to ParkBoard and handles all HTTP concerns:
//
//   - Dashboard pages: "/" and "/locations/{id}" rendered from the embedded templates
//   - REST API: JSON under "/api" for locations, grids, live data, stats and sessions
//   - Server-Sent Events: one rendered grid per store change at "/api/locations/{id}/sse"
//   - Operations: "/healthz" and Prometheus "/metrics"
//
// Routing uses gorilla/mux. The server supports graceful shutdown via
// context cancellation, with a 5-second timeout for in-flight requests.
//
// Users of the parkboard library should not need to interact with this
// package directly. The server is started automatically by [parkboard.ParkBoard.Start].
package server
