// Package wire defines the CBOR message encoding for the companion link
// reconnection protocol.
//
// All messages use CBOR maps with integer keys for compactness on
// constrained BLE links. The encoder is configured for deterministic
// output; the decoder is lenient to allow forward-compatible additions.
//
// The v1 device identifier exchange is the one exception: it is a raw
// fixed-length value on the wire, not CBOR, and is handled directly by
// the v1 handshake helper.
package wire
