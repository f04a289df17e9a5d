package reconnect

import (
	"errors"
	"fmt"

	"github.com/carlink-protocol/carlink-go/pkg/security"
)

// Handshake errors.
var (
	// ErrNotReady indicates StartHandshake was called before the
	// readiness gate opened.
	ErrNotReady = errors.New("handshake not ready")

	// ErrInvalidAdvertisement indicates advertisement data malformed for
	// the helper's version.
	ErrInvalidAdvertisement = errors.New("invalid advertisement data")

	// ErrUnassociatedPeripheral indicates the advertisement resolved to
	// no car in the registry; the caller must run full association.
	ErrUnassociatedPeripheral = errors.New("peripheral is not associated")

	// ErrInvalidMessageLength indicates a handshake message of the wrong
	// size. Structural; fatal.
	ErrInvalidMessageLength = errors.New("invalid handshake message length")

	// ErrInvalidIdentifier indicates a peer identifier that is not valid
	// text. Structural; fatal.
	ErrInvalidIdentifier = errors.New("invalid identifier encoding")

	// ErrIdentityMismatch indicates the disclosed identity does not match
	// the car resolved from the advertisement. Fatal.
	ErrIdentityMismatch = errors.New("peer identity mismatch")

	// ErrNoOutOfBandToken indicates a v4 handshake could not obtain a
	// token. The handshake fails rather than falling back to an
	// unencrypted path.
	ErrNoOutOfBandToken = errors.New("no out-of-band token available")
)

// MismatchedSecurityVersionError indicates the peer confirmed a security
// version different from the one the helper was constructed for. The
// handshake aborts; it never proceeds under the wrong version.
type MismatchedSecurityVersionError struct {
	// Expected is the version fixed at helper construction.
	Expected security.Version

	// Resolved is the version the peer confirmed.
	Resolved security.Version
}

// Error returns the error message.
func (e *MismatchedSecurityVersionError) Error() string {
	return fmt.Sprintf("mismatched security version: expected %s, peer resolved %s", e.Expected, e.Resolved)
}
