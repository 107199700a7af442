package encryption

import (
	"encoding/base64"
	"testing"

	"ghostroom/domain"

	"github.com/stretchr/testify/require"
)

func deriveTestKey(t *testing.T, token string) *RoomKey {
	t.Helper()
	key, err := DeriveRoomKey(domain.RoomToken(token))
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	req := require.New(t)
	key := deriveTestKey(t, "ABC-123-XYZ")

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "Simple text", plaintext: "hello"},
		{name: "Empty string", plaintext: ""},
		{name: "UTF-8 content", plaintext: "été à l'ombre 🌑"},
		{name: "Long message", plaintext: string(make([]byte, 4096))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Encrypt(tt.plaintext, key)
			require.True(t, env.Encrypted)
			require.NotEqual(t, tt.plaintext, env.Text)

			out, status := Decrypt(env.Text, key)
			require.Equal(t, StatusDecrypted, status)
			require.Equal(t, tt.plaintext, out)
		})
	}

	// Fresh nonce per call: same plaintext, different wire tokens.
	env1 := Encrypt("same", key)
	env2 := Encrypt("same", key)
	req.NotEqual(env1.Text, env2.Text)
}

// Two parties deriving from the same token must interoperate even
// though they never exchanged key material.
func TestDeriveRoomKey_Deterministic(t *testing.T) {
	req := require.New(t)

	alice := deriveTestKey(t, "ABC-123-XYZ")
	bob := deriveTestKey(t, "ABC-123-XYZ")

	env := Encrypt("hello", alice)
	out, status := Decrypt(env.Text, bob)
	req.Equal(StatusDecrypted, status)
	req.Equal("hello", out)
}

func TestDecrypt_CrossKeyYieldsSentinel(t *testing.T) {
	req := require.New(t)
	alice := deriveTestKey(t, "ABC-123-XYZ")
	eve := deriveTestKey(t, "DEF-456-GHI")

	env := Encrypt("secret", alice)
	out, status := Decrypt(env.Text, eve)
	req.Equal(StatusFailed, status)
	req.Equal(DecryptFailedSentinel, out)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	req := require.New(t)
	key := deriveTestKey(t, "ABC-123-XYZ")

	env := Encrypt("secret", key)
	wire, err := base64.StdEncoding.DecodeString(env.Text)
	req.NoError(err)
	wire[len(wire)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(wire)

	out, status := Decrypt(tampered, key)
	req.Equal(StatusFailed, status)
	req.Equal(DecryptFailedSentinel, out)
}

// Rooms can mix encrypted and plaintext messages; anything that is not
// a valid wire token passes through untouched.
func TestDecrypt_PlaintextPassthrough(t *testing.T) {
	key := deriveTestKey(t, "ABC-123-XYZ")

	tests := []struct {
		name  string
		input string
	}{
		{name: "Plain sentence with spaces", input: "just a plain message"},
		{name: "Punctuation breaks the base64 charset", input: "hello!"},
		{name: "Base64 charset but invalid padding", input: "hello"},
		{name: "Empty string", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, status := Decrypt(tt.input, key)
			require.Equal(t, StatusPlaintext, status)
			require.Equal(t, tt.input, out)
		})
	}
}

func TestEncrypt_NilKeyFailsOpen(t *testing.T) {
	req := require.New(t)

	env := Encrypt("hello", nil)
	req.False(env.Encrypted)
	req.Equal("hello", env.Text)

	out, status := Decrypt("hello", nil)
	req.Equal(StatusPlaintext, status)
	req.Equal("hello", out)
}

func TestAvailable(t *testing.T) {
	require.True(t, Available())
}
