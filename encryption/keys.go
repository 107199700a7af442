// Package encryption implements the room's shared-secret scheme: a
// symmetric key derived from the room token, and authenticated
// encryption of message payloads under that key.
//
// Confidentiality holds against a passive network observer and an
// honest-but-curious relay, not against anyone who learns the token.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"ghostroom/domain"
	"ghostroom/errors"
)

// applicationSalt is fixed for all participants. Changing it is a
// breaking protocol change: every derived key changes with it.
const applicationSalt = "ghostchat-salt-2024"

const nonceSize = 12

// RoomKey is a 256-bit AEAD key derived from a room token. It is held
// in memory for the session's lifetime and never persisted or
// transmitted. The raw bytes are not exported.
type RoomKey struct {
	aead cipher.AEAD
}

// Available probes the AEAD primitives this engine needs. It must be
// consulted once per session before any other crypto operation;
// callers degrade to plaintext mode when it reports false.
func Available() bool {
	var probe [32]byte
	block, err := aes.NewCipher(probe[:])
	if err != nil {
		return false
	}
	_, err = cipher.NewGCM(block)
	return err == nil
}

// DeriveRoomKey computes SHA-256(token ‖ salt) and uses the digest as
// an AES-256-GCM key. Deterministic: every holder of the same token
// derives a functionally identical key. The error wraps
// errors.ErrCryptoUnavailable so callers can fall back to plaintext
// instead of aborting the session.
func DeriveRoomKey(token domain.RoomToken) (*RoomKey, error) {
	digest := sha256.Sum256([]byte(string(token) + applicationSalt))

	block, err := aes.NewCipher(digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCryptoUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCryptoUnavailable, err)
	}
	return &RoomKey{aead: aead}, nil
}
