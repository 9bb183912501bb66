// Package feed provides the live spot-status subscription for ParkBoard.
//
// This package is internal to ParkBoard and owns everything between a
// transport (WebSocket, MQTT or HTTP polling) and the live status store.
// Transports connect, decode payloads into [Event] values and report
// lifecycle signals; the [Subscription] runs a transport in the background
// and forwards everything as [Message] values on a channel it owns.
//
// The main components are:
//
//   - [Transport]: Interface implemented by every transport
//   - [Subscription]: Scoped handle around a running transport
//   - [Decoder]: JSON payload decoding with configurable field paths
//   - [WebSocketTransport], [MQTTTransport], [HTTPTransport]: Built-in transports
//
// A subscription is acquired with [Subscribe] and released with
// [Subscription.Close]. Close is idempotent and always waits for the
// transport to release its connection, so a connection is closed exactly
// once no matter how often Close is called.
//
// Users of the parkboard library should not need to interact with this
// package directly. Feeds are configured through the main parkboard package.
package feed
