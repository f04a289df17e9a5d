package reconnect

import (
	"fmt"

	"github.com/carlink-protocol/carlink-go/pkg/association"
	"github.com/carlink-protocol/carlink-go/pkg/log"
	"github.com/carlink-protocol/carlink-go/pkg/oob"
	"github.com/carlink-protocol/carlink-go/pkg/security"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
)

// Helper drives one reconnection handshake attempt. A helper is scoped
// to exactly one peripheral and one security version, both fixed at
// construction; a new attempt needs a new helper.
type Helper interface {
	// SecurityVersion returns the version fixed at construction.
	SecurityVersion() security.Version

	// Peripheral returns the peripheral this attempt is scoped to.
	Peripheral() transport.Peripheral

	// CarID returns the verified car identifier. Empty until the
	// handshake completes; once set it is never cleared by the helper.
	CarID() string

	// State returns the current handshake state.
	State() State

	// Err returns the failure error after the handshake enters
	// StateFailed, nil otherwise.
	Err() error

	// IsReadyForHandshake reports whether message exchange may start.
	IsReadyForHandshake() bool

	// OnReadyForHandshake registers a single-shot readiness callback.
	// If the helper is already ready, the callback fires immediately.
	OnReadyForHandshake(fn func())

	// PrepareForHandshake feeds discovery-time advertisement data to the
	// helper. Versions that need no advertisement-derived configuration
	// treat this as a no-op. Fails synchronously on malformed data.
	PrepareForHandshake(advertisement []byte) error

	// StartHandshake begins message exchange on the stream. Callers must
	// wait for readiness first.
	StartHandshake(stream transport.MessageStream) error

	// HandleMessage processes one inbound handshake message. Returns
	// true when the handshake is complete and the car id is resolved;
	// false when more rounds are expected. Structural or cryptographic
	// failures abort the handshake. Messages arriving in a terminal
	// state are ignored.
	HandleMessage(stream transport.MessageStream, message []byte) (bool, error)

	// OnResolvedSecurityVersion reports the version the peer confirmed.
	// A version other than the constructed one aborts the handshake with
	// MismatchedSecurityVersionError.
	OnResolvedSecurityVersion(v security.Version) error

	// ConfigureSecureChannel performs version-specific secure channel
	// setup after handshake completion, e.g. installing the out-of-band
	// token as initial key material. The completion receives false on
	// configuration failure.
	ConfigureSecureChannel(channel SecureChannel, stream transport.MessageStream, completion func(bool))
}

// SecureChannel is the post-handshake collaborator. The handshake only
// configures it; the long-term message protocol it speaks is out of
// scope here.
type SecureChannel interface {
	// ApplyVersion applies version-specific channel configuration.
	ApplyVersion(v security.Version) error

	// InstallToken installs an out-of-band token as the channel's
	// initial key material.
	InstallToken(t oob.Token) error
}

// Config carries the collaborators a handshake helper needs.
type Config struct {
	// LocalDeviceID is this device's stable identifier.
	LocalDeviceID string

	// Registry resolves salted advertisements to associated cars.
	// Required for v2 and later.
	Registry *association.Manager

	// TokenProvider supplies the out-of-band token. Required for v4.
	TokenProvider oob.TokenProvider

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger
}

// NewHelper creates the handshake variant for a security version. The
// mapping is fixed: v1 runs the legacy cleartext exchange, v2 and v3
// share the encrypted-identity exchange, v4 adds the out-of-band token
// gate. Every supported version is handled; callers gate unknown
// versions with Version.IsValid before construction.
func NewHelper(v security.Version, peripheral transport.Peripheral, cfg Config) Helper {
	switch v {
	case security.VersionV1:
		return newHelperV1(peripheral, cfg)
	case security.VersionV2, security.VersionV3:
		return newHelperV2(v, peripheral, cfg)
	case security.VersionV4:
		return newHelperV4(peripheral, cfg)
	}
	panic(fmt.Sprintf("unhandled security version %d", uint8(v)))
}
