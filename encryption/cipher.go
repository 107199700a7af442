package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"regexp"
)

// DecryptFailedSentinel replaces a payload whose authentication
// failed. Raw ciphertext must never be shown as if it were the
// message.
const DecryptFailedSentinel = "[Encrypted message - failed to decrypt]"

// Envelope is the typed result of an encryption attempt. Encryption
// fails open: when the key is absent or the platform misbehaves, the
// plaintext is carried unchanged and Encrypted reports false, so the
// caller can surface "sent as plaintext" instead of silently
// swallowing the downgrade.
type Envelope struct {
	Text      string
	Encrypted bool
}

// DecryptStatus classifies what Decrypt did with a payload.
type DecryptStatus int

const (
	// StatusPlaintext means the payload was not an encrypted token and
	// was passed through unchanged (mixed encrypted/plaintext rooms).
	StatusPlaintext DecryptStatus = iota
	// StatusDecrypted means authentication succeeded and the returned
	// text is the original plaintext.
	StatusDecrypted
	// StatusFailed means the payload looked encrypted but did not
	// authenticate under this key; the sentinel was substituted.
	StatusFailed
)

var base64Token = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// Encrypt seals plaintext under the room key with a fresh random
// 96-bit nonce and returns base64(nonce ‖ ciphertext). A nil key or a
// nonce-generation failure yields a plaintext envelope.
func Encrypt(plaintext string, key *RoomKey) Envelope {
	if key == nil {
		return Envelope{Text: plaintext}
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{Text: plaintext}
	}

	sealed := key.aead.Seal(nil, nonce, []byte(plaintext), nil)
	wire := make([]byte, 0, len(nonce)+len(sealed))
	wire = append(wire, nonce...)
	wire = append(wire, sealed...)

	return Envelope{
		Text:      base64.StdEncoding.EncodeToString(wire),
		Encrypted: true,
	}
}

// Decrypt opens a wire token produced by Encrypt. Payloads that are
// not valid base64 are treated as plaintext and returned unmodified.
// Payloads that decode but fail authentication yield the failure
// sentinel, never the raw ciphertext and never a wrong plaintext (the
// AEAD tag enforces this). Decrypt does not return an error: every
// outcome is a displayable string plus its classification.
func Decrypt(token string, key *RoomKey) (string, DecryptStatus) {
	if key == nil || token == "" {
		return token, StatusPlaintext
	}
	if !base64Token.MatchString(token) {
		return token, StatusPlaintext
	}

	wire, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return token, StatusPlaintext
	}
	if len(wire) < nonceSize+key.aead.Overhead() {
		return DecryptFailedSentinel, StatusFailed
	}

	nonce := wire[:nonceSize]
	sealed := wire[nonceSize:]

	plaintext, err := key.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return DecryptFailedSentinel, StatusFailed
	}
	return string(plaintext), StatusDecrypted
}
