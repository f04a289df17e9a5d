package main

import (
	"crypto/rand"
	"fmt"

	"github.com/carlink-protocol/carlink-go/pkg/oob"
	"github.com/carlink-protocol/carlink-go/pkg/reconnect"
	"github.com/carlink-protocol/carlink-go/pkg/security"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
	"github.com/carlink-protocol/carlink-go/pkg/wire"
)

// Vehicle simulates the car side of a reconnection handshake. It owns
// the car ends of the handshake stream and, for v4, the side channel
// carrying the out-of-band token material.
type Vehicle struct {
	carID   string
	version security.Version
	stream  transport.MessageStream

	// v4 token state
	token     oob.Token
	sendNonce []byte
	peerNonce []byte
}

// startVehicle wires a simulated vehicle to the car end of the
// handshake stream. For v4 it also publishes token material on the side
// channel before any handshake message flows.
func startVehicle(carID string, v security.Version, stream, sideChannel transport.MessageStream) (*Vehicle, error) {
	veh := &Vehicle{
		carID:   carID,
		version: v,
		stream:  stream,
	}

	if v == security.VersionV4 {
		if err := veh.publishToken(sideChannel); err != nil {
			return nil, err
		}
	}

	stream.SetMessageHandler(veh.handleMessage)
	return veh, nil
}

// Advertisement returns the advertisement this vehicle broadcasts.
func (v *Vehicle) Advertisement() ([]byte, error) {
	if v.version == security.VersionV1 {
		return reconnect.BuildAdvertisement(v.version, v.carID, nil)
	}

	salt := make([]byte, reconnect.AdvertisementSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating advertisement salt: %w", err)
	}
	return reconnect.BuildAdvertisement(v.version, v.carID, salt)
}

// publishToken generates token material, derives the vehicle's own
// token from it, and sends it to the phone over the side channel.
func (v *Vehicle) publishToken(sideChannel transport.MessageStream) error {
	keyMaterial := make([]byte, oob.KeySize)
	carNonce := make([]byte, oob.NonceSize)
	phoneNonce := make([]byte, oob.NonceSize)
	for _, buf := range [][]byte{keyMaterial, carNonce, phoneNonce} {
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generating token material: %w", err)
		}
	}

	// The vehicle derives its token as if it had received the mirrored
	// message, giving it the send/receive orientation opposite the phone's.
	mat, err := oob.DeriveMaterial(&wire.OOBTokenMessage{
		KeyMaterial:  keyMaterial,
		SendNonce:    phoneNonce,
		ReceiveNonce: carNonce,
	})
	if err != nil {
		return err
	}
	token, err := oob.NewToken(mat)
	if err != nil {
		return err
	}
	v.token = token
	v.sendNonce = carNonce
	v.peerNonce = phoneNonce

	payload, err := wire.Marshal(&wire.OOBTokenMessage{
		MsgType:      wire.MsgOOBToken,
		KeyMaterial:  keyMaterial,
		SendNonce:    carNonce,
		ReceiveNonce: phoneNonce,
	})
	if err != nil {
		return err
	}
	return sideChannel.WriteMessage(payload, transport.MessageParams{
		Operation: transport.OperationClientMessage,
	})
}

// handleMessage reacts to the phone's handshake messages per version.
func (v *Vehicle) handleMessage(data []byte) {
	switch v.version {
	case security.VersionV1:
		// The phone sent its raw identifier; answer with ours
		_ = v.stream.WriteMessage([]byte(v.carID), transport.MessageParams{
			Operation: transport.OperationEncryptionHandshake,
		})

	case security.VersionV2, security.VersionV3:
		msg, err := wire.DecodeMessage(data)
		if err != nil {
			return
		}
		if _, ok := msg.(*wire.VersionExchange); !ok {
			return
		}
		v.sendIdentity([]byte(v.carID))

	case security.VersionV4:
		msg, err := wire.DecodeMessage(data)
		if err != nil {
			return
		}
		identity, ok := msg.(*wire.EncryptedIdentity)
		if !ok || v.token == nil {
			return
		}
		// The phone's sealed frame omits the nonce; it is fixed by the
		// out-of-band exchange
		if _, err := v.token.Decrypt(append(identity.Payload, v.peerNonce...)); err != nil {
			return
		}

		sealed, err := v.token.Encrypt([]byte(v.carID))
		if err != nil {
			return
		}
		v.sendIdentity(append(sealed, v.sendNonce...))
	}
}

// sendIdentity wraps payload in an encrypted-identity message and
// writes it to the phone.
func (v *Vehicle) sendIdentity(payload []byte) {
	data, err := wire.Marshal(&wire.EncryptedIdentity{
		MsgType: wire.MsgEncryptedIdentity,
		Payload: payload,
	})
	if err != nil {
		return
	}
	_ = v.stream.WriteMessage(data, transport.MessageParams{
		Operation: transport.OperationEncryptionHandshake,
	})
}
