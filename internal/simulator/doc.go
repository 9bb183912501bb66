// Package simulator provides a stand-in live feed for local development.
//
// A [Simulator] keeps a status for spots spot_0 .. spot_N-1 and changes one
// at random on every tick. Changes are pushed to WebSocket clients as
// {"spotId": ..., "status": ...} objects, the shape ParkBoard decodes by
// default. New clients first receive the whole state as a JSON array. The
// same array is served at /spots for the HTTP polling transport.
package simulator
