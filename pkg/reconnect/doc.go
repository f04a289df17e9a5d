// Package reconnect implements the versioned reconnection handshake of
// the companion link.
//
// A Helper drives one handshake attempt against one peripheral under
// one security version, all fixed at construction. The factory maps
// versions to variants: v1 runs the legacy cleartext identifier
// exchange, v2 and v3 share the encrypted-identity exchange, and v4
// gates the handshake behind an out-of-band token.
//
// Handshakes fail closed: malformed messages, cryptographic failures,
// and security version mismatches all abort the attempt, and the caller
// falls back to full association rather than retrying the same helper.
package reconnect
