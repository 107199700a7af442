package domain

import (
	"crypto/rand"
	"math/big"
	"strings"

	"ghostroom/errors"
)

// RoomToken identifies a room and doubles as its shared secret.
// Possession of the token is the sole authorization boundary.
type RoomToken string

// tokenAlphabet excludes ambiguous characters (I, O, 0, 1) so tokens
// survive being read aloud or typed from a screenshot.
const tokenAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const tokenGroups = 3
const tokenGroupLen = 3

// CanonicalToken normalizes a raw user-typed token. Tokens are
// case-insensitive on input but a single canonical form must feed key
// derivation, otherwise two participants typing the same token in
// different cases would derive different keys.
func CanonicalToken(raw string) (RoomToken, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", errors.ErrEmptyToken
	}
	return RoomToken(trimmed), nil
}

// GenerateRoomToken creates a fresh token of the form XXX-XXX-XXX.
func GenerateRoomToken() RoomToken {
	var b strings.Builder
	for group := 0; group < tokenGroups; group++ {
		if group > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < tokenGroupLen; i++ {
			b.WriteByte(tokenAlphabet[randomIndex(len(tokenAlphabet))])
		}
	}
	return RoomToken(b.String())
}

func randomIndex(n int) int {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failing means the platform is broken beyond what a
		// token generator can work around.
		panic(err)
	}
	return int(idx.Int64())
}
