package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^LIC-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)

func TestKeyGeneratorFormat(t *testing.T) {
	gen := NewKeyGenerator("LIC", func(context.Context, string) (bool, error) { return false, nil })

	key, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, keyPattern, key)
}

func TestKeyGeneratorRetriesOnCollision(t *testing.T) {
	calls := 0
	gen := NewKeyGenerator("LIC", func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	})

	key, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, 3, calls)
}

func TestKeyGeneratorExhausted(t *testing.T) {
	calls := 0
	gen := NewKeyGenerator("LIC", func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})

	_, err := gen.Generate(context.Background())
	assert.ErrorIs(t, err, ErrKeyGenerationExhausted)
	assert.Equal(t, DefaultKeyAttempts, calls)
	assert.Equal(t, "key_generation_exhausted", string(ErrorKindFor(err)))
}

func TestKeyGeneratorLookupFailure(t *testing.T) {
	gen := NewKeyGenerator("LIC", func(context.Context, string) (bool, error) {
		return false, errors.New("connection reset")
	})

	_, err := gen.Generate(context.Background())
	require.Error(t, err)
	assert.Equal(t, "db_lookup_failed", string(ErrorKindFor(err)))
}
