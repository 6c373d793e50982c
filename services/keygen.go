package services

import (
	"context"
	"fmt"

	"licensegate/logger"
	"licensegate/utils"
)

// DefaultKeyAttempts bounds how many candidates are tried before giving up.
const DefaultKeyAttempts = 6

// KeyExistsFunc reports whether a key is already taken.
type KeyExistsFunc func(ctx context.Context, key string) (bool, error)

// KeyGenerator produces license keys that are not yet in the registry.
type KeyGenerator struct {
	prefix   string
	attempts int
	exists   KeyExistsFunc
	generate func(prefix string) (string, error)
}

// NewKeyGenerator builds a generator backed by utils.GenerateLicenseKey.
func NewKeyGenerator(prefix string, exists KeyExistsFunc) *KeyGenerator {
	return &KeyGenerator{
		prefix:   prefix,
		attempts: DefaultKeyAttempts,
		exists:   exists,
		generate: utils.GenerateLicenseKey,
	}
}

// Generate returns a fresh key. The uniqueness check is advisory; the primary
// key on licenses is what finally rejects a duplicate.
func (g *KeyGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.attempts; attempt++ {
		key, err := g.generate(g.prefix)
		if err != nil {
			return "", fmt.Errorf("generate key: %w", err)
		}

		taken, err := g.exists(ctx, key)
		if err != nil {
			return "", storageErr("lookup", err)
		}
		if !taken {
			return key, nil
		}

		logger.WithFields(map[string]interface{}{
			"attempt": attempt,
		}).Warn("License key collision, retrying")
	}
	return "", ErrKeyGenerationExhausted
}
