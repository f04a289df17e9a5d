package oob

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/carlink-protocol/carlink-go/pkg/wire"
)

// Token frame constants.
const (
	// KeySize is the AES key size in bytes.
	KeySize = 16

	// NonceSize is the GCM nonce size in bytes. Decryption input carries
	// the nonce as a trailing suffix of this length.
	NonceSize = 16

	// TagSize is the GCM authentication tag size in bytes. Encryption
	// output carries the tag as a trailing suffix of this length.
	TagSize = 16

	// MinFrameSize is the smallest valid decryption input: an empty
	// ciphertext still carries a tag and a trailing nonce.
	MinFrameSize = TagSize + NonceSize
)

// tokenInfo binds derived keys to this protocol.
var tokenInfo = []byte("companion-link-oob-token")

// Token errors.
var (
	ErrEncryptionFailed    = errors.New("encryption failed")
	ErrDecryptionFailed    = errors.New("decryption failed")
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrUnsupportedPlatform = errors.New("crypto primitive unavailable")
	ErrInvalidKeyMaterial  = errors.New("invalid token key material")
)

// InvalidDataSizeError reports a decryption input shorter than the
// minimum frame.
type InvalidDataSizeError struct {
	// Size is the actual input size in bytes.
	Size int
}

// Error returns the error message.
func (e *InvalidDataSizeError) Error() string {
	return fmt.Sprintf("invalid data size %d: need at least %d bytes", e.Size, MinFrameSize)
}

// Token is a symmetric encryption capability established out of band.
// It bootstraps trust before the main link is secured: the handshake
// encrypts identity-bearing payloads with it, and the secure channel may
// install it as initial key material.
//
// The key bytes are never exposed; a Token is owned by the provider that
// produced it and handed off, not copied.
type Token interface {
	// Encrypt seals message, returning ciphertext with a trailing
	// TagSize-byte authentication tag.
	Encrypt(message []byte) ([]byte, error)

	// Decrypt opens message, whose layout is ciphertext followed by a
	// trailing NonceSize-byte nonce. Authentication failure is an error;
	// partial plaintext is never returned.
	Decrypt(message []byte) ([]byte, error)
}

// Material is the raw inputs a token is built from: one shared key and a
// fixed nonce per direction.
type Material struct {
	Key          []byte
	SendNonce    []byte
	ReceiveNonce []byte
}

// gcmToken implements Token with AES-GCM.
type gcmToken struct {
	aead      cipher.AEAD
	sendNonce []byte
	recvNonce []byte
}

// NewToken builds a token from explicit material.
func NewToken(m Material) (Token, error) {
	if len(m.Key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidKeyMaterial, KeySize, len(m.Key))
	}
	if len(m.SendNonce) != NonceSize || len(m.ReceiveNonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonces must be %d bytes", ErrInvalidKeyMaterial, NonceSize)
	}

	block, err := aes.NewCipher(m.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}

	return &gcmToken{
		aead:      aead,
		sendNonce: append([]byte(nil), m.SendNonce...),
		recvNonce: append([]byte(nil), m.ReceiveNonce...),
	}, nil
}

// DeriveMaterial expands wire token material into Material for the
// receiving side. The key is derived with HKDF-SHA256; the nonce
// directions are mirrored relative to the sender.
func DeriveMaterial(msg *wire.OOBTokenMessage) (Material, error) {
	if len(msg.KeyMaterial) == 0 {
		return Material{}, fmt.Errorf("%w: empty key material", ErrInvalidKeyMaterial)
	}

	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, msg.KeyMaterial, nil, tokenInfo)
	if _, err := io.ReadFull(r, key); err != nil {
		return Material{}, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}

	// The sender encrypts with its SendNonce, so we receive with it.
	return Material{
		Key:          key,
		SendNonce:    msg.ReceiveNonce,
		ReceiveNonce: msg.SendNonce,
	}, nil
}

// Encrypt seals message under the send nonce.
func (t *gcmToken) Encrypt(message []byte) ([]byte, error) {
	if t.aead == nil {
		return nil, ErrEncryptionFailed
	}
	return t.aead.Seal(nil, t.sendNonce, message, nil), nil
}

// Decrypt extracts the trailing nonce and opens the remaining bytes.
func (t *gcmToken) Decrypt(message []byte) ([]byte, error) {
	if len(message) < MinFrameSize {
		return nil, &InvalidDataSizeError{Size: len(message)}
	}

	split := len(message) - NonceSize
	encrypted, nonce := message[:split], message[split:]

	// The peer's nonce was fixed by the out-of-band exchange; a trailing
	// nonce that disagrees with it is a structural failure, not a tag
	// mismatch.
	if !hmac.Equal(nonce, t.recvNonce) {
		return nil, ErrInvalidNonce
	}

	plaintext, err := t.aead.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
