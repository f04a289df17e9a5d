// Package transport defines the boundary between the reconnection
// protocol and the physical link (BLE central/peripheral stack or a
// wired accessory session).
//
// The protocol consumes these interfaces; it never implements the
// physical transport. The framing layer that turns raw link bytes into
// discrete messages sits below MessageStream and is likewise out of
// scope here.
//
// Pipe provides a pair of connected in-memory streams for tests and the
// simulator.
package transport
