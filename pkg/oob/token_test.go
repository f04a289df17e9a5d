package oob

import (
	"bytes"
	"errors"
	"testing"

	"github.com/carlink-protocol/carlink-go/pkg/wire"
)

// testMaterials returns mirrored materials for the two ends of a link.
func testMaterials(t *testing.T) (local, remote Material) {
	t.Helper()

	key := bytes.Repeat([]byte{0x42}, KeySize)
	nonceA := bytes.Repeat([]byte{0x01}, NonceSize)
	nonceB := bytes.Repeat([]byte{0x02}, NonceSize)

	local = Material{Key: key, SendNonce: nonceA, ReceiveNonce: nonceB}
	remote = Material{Key: key, SendNonce: nonceB, ReceiveNonce: nonceA}
	return local, remote
}

// transfer converts an Encrypt output into the Decrypt input format by
// appending the sender's nonce.
func transfer(sealed, senderNonce []byte) []byte {
	out := append([]byte(nil), sealed...)
	return append(out, senderNonce...)
}

func TestTokenRoundTrip(t *testing.T) {
	localMat, remoteMat := testMaterials(t)

	local, err := NewToken(localMat)
	if err != nil {
		t.Fatalf("NewToken(local) failed: %v", err)
	}
	remote, err := NewToken(remoteMat)
	if err != nil {
		t.Fatalf("NewToken(remote) failed: %v", err)
	}

	plaintext := []byte("ABCD-1234")
	sealed, err := local.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(sealed) != len(plaintext)+TagSize {
		t.Errorf("sealed length = %d, want %d (plaintext + tag)", len(sealed), len(plaintext)+TagSize)
	}

	got, err := remote.Decrypt(transfer(sealed, localMat.SendNonce))
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestTokenDecryptUndersized(t *testing.T) {
	localMat, _ := testMaterials(t)
	token, err := NewToken(localMat)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}

	for _, size := range []int{0, 1, TagSize, MinFrameSize - 1} {
		_, err := token.Decrypt(make([]byte, size))
		var sizeErr *InvalidDataSizeError
		if !errors.As(err, &sizeErr) {
			t.Fatalf("Decrypt(%d bytes): error = %v, want InvalidDataSizeError", size, err)
		}
		if sizeErr.Size != size {
			t.Errorf("InvalidDataSizeError.Size = %d, want %d", sizeErr.Size, size)
		}
	}
}

func TestTokenDecryptWrongNonce(t *testing.T) {
	localMat, remoteMat := testMaterials(t)
	local, _ := NewToken(localMat)
	remote, _ := NewToken(remoteMat)

	sealed, err := local.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Trailing nonce disagrees with the out-of-band exchange
	bogus := bytes.Repeat([]byte{0xEE}, NonceSize)
	if _, err := remote.Decrypt(transfer(sealed, bogus)); !errors.Is(err, ErrInvalidNonce) {
		t.Errorf("Decrypt with wrong nonce: error = %v, want ErrInvalidNonce", err)
	}
}

func TestTokenDecryptTamperedCiphertext(t *testing.T) {
	localMat, remoteMat := testMaterials(t)
	local, _ := NewToken(localMat)
	remote, _ := NewToken(remoteMat)

	sealed, err := local.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	sealed[0] ^= 0xFF

	_, err = remote.Decrypt(transfer(sealed, localMat.SendNonce))
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt of tampered data: error = %v, want ErrDecryptionFailed", err)
	}
}

func TestNewTokenValidation(t *testing.T) {
	good, _ := testMaterials(t)

	tests := []struct {
		name string
		mod  func(Material) Material
	}{
		{"short key", func(m Material) Material { m.Key = m.Key[:8]; return m }},
		{"empty key", func(m Material) Material { m.Key = nil; return m }},
		{"short send nonce", func(m Material) Material { m.SendNonce = m.SendNonce[:4]; return m }},
		{"missing receive nonce", func(m Material) Material { m.ReceiveNonce = nil; return m }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewToken(tt.mod(good)); !errors.Is(err, ErrInvalidKeyMaterial) {
				t.Errorf("NewToken() error = %v, want ErrInvalidKeyMaterial", err)
			}
		})
	}
}

func TestDeriveMaterialMirrorsNonces(t *testing.T) {
	msg := &wire.OOBTokenMessage{
		MsgType:      wire.MsgOOBToken,
		KeyMaterial:  []byte("shared secret from the accessory session"),
		SendNonce:    bytes.Repeat([]byte{0x0A}, NonceSize),
		ReceiveNonce: bytes.Repeat([]byte{0x0B}, NonceSize),
	}

	m, err := DeriveMaterial(msg)
	if err != nil {
		t.Fatalf("DeriveMaterial failed: %v", err)
	}
	if len(m.Key) != KeySize {
		t.Errorf("derived key length = %d, want %d", len(m.Key), KeySize)
	}
	// The receiver sends with the sender's receive nonce and vice versa.
	if !bytes.Equal(m.SendNonce, msg.ReceiveNonce) {
		t.Error("derived SendNonce should mirror the message's ReceiveNonce")
	}
	if !bytes.Equal(m.ReceiveNonce, msg.SendNonce) {
		t.Error("derived ReceiveNonce should mirror the message's SendNonce")
	}
}

func TestDeriveMaterialEmptyKeyMaterial(t *testing.T) {
	msg := &wire.OOBTokenMessage{MsgType: wire.MsgOOBToken}
	if _, err := DeriveMaterial(msg); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Errorf("DeriveMaterial() error = %v, want ErrInvalidKeyMaterial", err)
	}
}

func TestDeriveMaterialDeterministic(t *testing.T) {
	msg := &wire.OOBTokenMessage{
		MsgType:      wire.MsgOOBToken,
		KeyMaterial:  []byte("seed"),
		SendNonce:    make([]byte, NonceSize),
		ReceiveNonce: make([]byte, NonceSize),
	}
	a, err := DeriveMaterial(msg)
	if err != nil {
		t.Fatalf("first derivation failed: %v", err)
	}
	b, err := DeriveMaterial(msg)
	if err != nil {
		t.Fatalf("second derivation failed: %v", err)
	}
	if !bytes.Equal(a.Key, b.Key) {
		t.Error("expected identical keys from identical material")
	}
}
