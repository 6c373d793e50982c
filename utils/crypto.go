package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// KeyAlphabet omits 0/O and 1/I so keys survive being read aloud or retyped.
const KeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	keySegments   = 4
	keySegmentLen = 4
)

// GenerateLicenseKey builds a key of the form PREFIX-XXXX-XXXX-XXXX-XXXX.
func GenerateLicenseKey(prefix string) (string, error) {
	raw := make([]byte, keySegments*keySegmentLen)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	// len(KeyAlphabet) divides 256, so the modulo is unbiased.
	segments := make([]string, 0, keySegments+1)
	if prefix != "" {
		segments = append(segments, strings.ToUpper(prefix))
	}
	for s := 0; s < keySegments; s++ {
		var b strings.Builder
		for _, c := range raw[s*keySegmentLen : (s+1)*keySegmentLen] {
			b.WriteByte(KeyAlphabet[int(c)%len(KeyAlphabet)])
		}
		segments = append(segments, b.String())
	}

	return strings.Join(segments, "-"), nil
}

// GenerateID returns a random 16 hex character id, optionally prefixed.
func GenerateID(prefix string) (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	id := hex.EncodeToString(bytes)
	if prefix != "" {
		return fmt.Sprintf("%s-%s", prefix, id), nil
	}
	return id, nil
}

// HashPassword hashes an admin password with bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword compares a bcrypt hash with a candidate password.
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
