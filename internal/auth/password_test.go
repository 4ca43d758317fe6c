package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndMatch(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("secret123")
	require.NoError(t, err)

	assert.True(t, h.Matches("secret123", hash))
	assert.False(t, h.Matches("secret124", hash))

	again, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt differs per call")
}

func TestHasher_MalformedHashNeverMatches(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	for _, hash := range []string{"", "plain", "$2a$04$short"} {
		assert.False(t, h.Matches("secret123", hash), "hash %q", hash)
	}
}

func TestHasher_RejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := NewHasher(bcrypt.MinCost).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestNewHasher_ClampsCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}
