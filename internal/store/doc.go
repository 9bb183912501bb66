// Package store provides the live status store for ParkBoard.
//
// This package is internal to ParkBoard and holds the volatile, process-wide
// view of the live feed: the last-known status of every spot the feed has
// reported and the health of the feed connection. It implements a
// publish-subscribe pattern so that every change is pushed to connected
// dashboard clients.
//
// The main components are:
//
//   - [Store]: Interface defining read, write and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: Read-only copy of the store state
//
// A MemoryStore has a single writer: [MemoryStore.Run] consumes the message
// channel owned by a feed subscription. Readers take snapshots. Subscribers
// receive snapshots via channels with non-blocking sends (slow subscribers
// miss intermediate snapshots but can always call Snapshot).
//
// Users of the parkboard library should not need to interact with this
// package directly. The store is managed internally by ParkBoard.
package store
