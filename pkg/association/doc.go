// Package association maintains the registry of cars this device has
// completed association with.
//
// The registry decides whether a discovered peripheral gets the
// reconnection handshake (already trusted) or must go through full
// association. Storage is abstracted behind the Store interface; a
// JSON-file store and an in-memory store are provided.
package association
