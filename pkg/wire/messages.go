package wire

import (
	"errors"
	"fmt"
)

// Message type identifiers for CBOR-encoded companion link messages.
const (
	// MsgVersionExchange announces the supported security version range.
	MsgVersionExchange uint8 = 1

	// MsgEncryptedIdentity carries an identity payload encrypted for the
	// peer (v2 and later handshakes).
	MsgEncryptedIdentity uint8 = 2

	// MsgOOBToken delivers out-of-band token material on a side channel.
	MsgOOBToken uint8 = 3
)

// Wire errors.
var (
	ErrInvalidMessage = errors.New("invalid message")
)

// VersionExchange announces the sender's supported security version range.
//
// CBOR encoding:
//
//	{
//	  1: msgType,     // uint8: MsgVersionExchange
//	  2: minVersion,  // uint8
//	  3: maxVersion   // uint8
//	}
type VersionExchange struct {
	MsgType    uint8 `cbor:"1,keyasint"`
	MinVersion uint8 `cbor:"2,keyasint"`
	MaxVersion uint8 `cbor:"3,keyasint"`
}

// EncryptedIdentity carries an encrypted identity payload during a v2+
// handshake. The payload format is version-specific; at the wire level it
// is opaque ciphertext.
//
// CBOR encoding:
//
//	{
//	  1: msgType,   // uint8: MsgEncryptedIdentity
//	  2: payload    // bytes: ciphertext with trailing auth tag
//	}
type EncryptedIdentity struct {
	MsgType uint8  `cbor:"1,keyasint"`
	Payload []byte `cbor:"2,keyasint"`
}

// OOBTokenMessage delivers out-of-band token material over a side channel
// (e.g. a wired accessory session). The key material is expanded into
// directional keys by the receiver; the nonces are fixed for the lifetime
// of the token.
//
// CBOR encoding:
//
//	{
//	  1: msgType,       // uint8: MsgOOBToken
//	  2: keyMaterial,   // bytes
//	  3: sendNonce,     // bytes: nonce the sender of this message encrypts with
//	  4: receiveNonce   // bytes: nonce the receiver encrypts with
//	}
type OOBTokenMessage struct {
	MsgType      uint8  `cbor:"1,keyasint"`
	KeyMaterial  []byte `cbor:"2,keyasint"`
	SendNonce    []byte `cbor:"3,keyasint"`
	ReceiveNonce []byte `cbor:"4,keyasint"`
}

// DecodeMessage decodes CBOR bytes into the appropriate message type.
func DecodeMessage(data []byte) (any, error) {
	// First, decode just to get the message type
	var header struct {
		MsgType uint8 `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch header.MsgType {
	case MsgVersionExchange:
		var msg VersionExchange
		if err := Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return &msg, nil

	case MsgEncryptedIdentity:
		var msg EncryptedIdentity
		if err := Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return &msg, nil

	case MsgOOBToken:
		var msg OOBTokenMessage
		if err := Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("%w: unknown message type %d", ErrInvalidMessage, header.MsgType)
	}
}
