package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignatureVerifier checks the base64 HMAC-SHA256 the shop puts on every
// webhook delivery.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Configured is false when no secret is set; such a verifier rejects everything.
func (v *SignatureVerifier) Configured() bool {
	return v != nil && len(v.secret) > 0
}

// Sign computes the signature for a raw body.
func (v *SignatureVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time against the signature over the exact bytes
// received.
func (v *SignatureVerifier) Verify(body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if !v.Configured() || signature == "" {
		return false
	}
	return hmac.Equal([]byte(v.Sign(body)), []byte(signature))
}
