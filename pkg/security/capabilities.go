package security

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed specs/*.yaml
var specFS embed.FS

// Capabilities describes what a security version requires of the
// handshake and the secure channel.
type Capabilities struct {
	// Version is the version string ("v1".."v4").
	Version string `yaml:"version"`

	// Description is a short human-readable summary.
	Description string `yaml:"description"`

	// EncryptedIdentity indicates identity bytes never travel in the clear.
	EncryptedIdentity bool `yaml:"encrypted_identity"`

	// OOBToken indicates the handshake is gated behind an out-of-band token.
	OOBToken bool `yaml:"oob_token"`

	// AdvertisementSalt indicates the peer advertises a salted identifier
	// digest that must be resolved before the handshake starts.
	AdvertisementSalt bool `yaml:"advertisement_salt"`

	// Deprecated marks versions kept only for backward compatibility.
	Deprecated bool `yaml:"deprecated"`
}

var (
	capsMu    sync.RWMutex
	capsCache = make(map[Version]*Capabilities)
)

// LoadCapabilities loads the capability manifest for a security version.
func LoadCapabilities(v Version) (*Capabilities, error) {
	capsMu.RLock()
	if c, ok := capsCache[v]; ok {
		capsMu.RUnlock()
		return c, nil
	}
	capsMu.RUnlock()

	if !v.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, uint8(v))
	}

	data, err := specFS.ReadFile(fmt.Sprintf("specs/v%d.yaml", uint8(v)))
	if err != nil {
		return nil, fmt.Errorf("capability manifest for %s not found: %w", v, err)
	}

	var c Capabilities
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing capability manifest for %s: %w", v, err)
	}

	capsMu.Lock()
	capsCache[v] = &c
	capsMu.Unlock()

	return &c, nil
}
