package reconnect

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/carlink-protocol/carlink-go/pkg/security"
)

// Advertisement layout constants for v2 and later. The advertisement is
// [version byte][salt][truncated digest], where the digest is
// HMAC-SHA256 over the car id keyed by the salt, truncated.
const (
	// AdvertisementSaltSize is the salt length in bytes.
	AdvertisementSaltSize = 8

	// AdvertisementDigestSize is the truncated digest length in bytes.
	AdvertisementDigestSize = 8

	// saltedAdvertisementSize is the full v2+ advertisement length.
	saltedAdvertisementSize = 1 + AdvertisementSaltSize + AdvertisementDigestSize
)

// BuildAdvertisement encodes the advertisement a car broadcasts for a
// security version. v1 carries only the version byte; v2 and later add
// the salted car id digest. Used by the vehicle side and by tests.
func BuildAdvertisement(v security.Version, carID string, salt []byte) ([]byte, error) {
	if v == security.VersionV1 {
		return []byte{byte(v)}, nil
	}

	if len(salt) != AdvertisementSaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d",
			ErrInvalidAdvertisement, AdvertisementSaltSize, len(salt))
	}

	adv := make([]byte, 0, saltedAdvertisementSize)
	adv = append(adv, byte(v))
	adv = append(adv, salt...)
	adv = append(adv, truncatedDigest(salt, carID)...)
	return adv, nil
}

// resolveSaltedAdvertisement parses a v2+ advertisement and resolves the
// digest against the given candidate car ids. Returns the matching id,
// or ErrUnassociatedPeripheral if no candidate matches.
func resolveSaltedAdvertisement(advertisement []byte, candidates []string) (string, error) {
	if len(advertisement) != saltedAdvertisementSize {
		return "", fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidAdvertisement, saltedAdvertisementSize, len(advertisement))
	}

	salt := advertisement[1 : 1+AdvertisementSaltSize]
	digest := advertisement[1+AdvertisementSaltSize:]

	for _, id := range candidates {
		if hmac.Equal(digest, truncatedDigest(salt, id)) {
			return id, nil
		}
	}
	return "", ErrUnassociatedPeripheral
}

// truncatedDigest computes the truncated HMAC-SHA256 of a car id under
// the advertisement salt.
func truncatedDigest(salt []byte, carID string) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(carID))
	return mac.Sum(nil)[:AdvertisementDigestSize]
}
