// Package session guards the shared transport resources of the
// companion link.
//
// Exactly one handshake may be live per (peripheral, protocol) pair;
// the Manager rejects a second concurrent attempt rather than letting
// two handshakes race over the same link. Session teardown is
// deterministic and idempotent: pending out-of-band token requests
// resolve with nil, owned streams close, and the slot frees for the
// next attempt.
package session
