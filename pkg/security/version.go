// Package security provides security version negotiation for the companion link.
package security

import (
	"errors"
	"fmt"
)

// Version represents a negotiated security version of the reconnection
// protocol. Versions are ordered by capability: higher versions never
// remove guarantees of lower ones. A version is negotiated once per
// session and is immutable thereafter.
type Version uint8

const (
	// VersionV1 exchanges device identifiers in the clear. Deprecated in
	// the protocol; still supported for old head units.
	VersionV1 Version = 1

	// VersionV2 exchanges identifiers encrypted under the secure channel.
	VersionV2 Version = 2

	// VersionV3 is wire-identical to VersionV2 at the handshake level and
	// differs only in downstream secure-channel configuration.
	VersionV3 Version = 3

	// VersionV4 additionally gates the handshake behind an out-of-band
	// token: no identity bytes leave the device unencrypted by the token.
	VersionV4 Version = 4
)

// MinVersion and MaxVersion bound the supported version range.
const (
	MinVersion = VersionV1
	MaxVersion = VersionV4
)

// Version resolution errors.
var (
	ErrEmptyAdvertisement = errors.New("empty advertisement data")
	ErrUnsupportedVersion = errors.New("unsupported security version")
)

// String returns a human-readable version name.
func (v Version) String() string {
	switch v {
	case VersionV1:
		return "V1"
	case VersionV2:
		return "V2"
	case VersionV3:
		return "V3"
	case VersionV4:
		return "V4"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the version is within the supported range.
func (v Version) IsValid() bool {
	return v >= MinVersion && v <= MaxVersion
}

// AtLeast returns true if the version is other or newer.
func (v Version) AtLeast(other Version) bool {
	return v >= other
}

// ResolveVersion extracts the security version from peer advertisement
// data. The first advertisement byte carries the version; the remainder
// is version-specific and left for the handshake helper to interpret.
func ResolveVersion(advertisement []byte) (Version, error) {
	if len(advertisement) == 0 {
		return 0, ErrEmptyAdvertisement
	}

	v := Version(advertisement[0])
	if !v.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, advertisement[0])
	}

	return v, nil
}

// ResolveMaxCompatible picks the highest version supported by both sides.
// Returns ErrUnsupportedVersion if the ranges do not overlap.
func ResolveMaxCompatible(peerMin, peerMax Version) (Version, error) {
	if peerMin > peerMax {
		return 0, fmt.Errorf("%w: inverted peer range %s..%s", ErrUnsupportedVersion, peerMin, peerMax)
	}
	if peerMin > MaxVersion || peerMax < MinVersion {
		return 0, fmt.Errorf("%w: peer range %s..%s", ErrUnsupportedVersion, peerMin, peerMax)
	}

	v := peerMax
	if v > MaxVersion {
		v = MaxVersion
	}
	return v, nil
}
