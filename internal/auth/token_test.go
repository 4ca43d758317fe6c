package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowcorner/identity-core/internal/models"
)

func newManager(now time.Time) *TokenManager {
	m := NewTokenManager("super-secret", "identity-core", time.Hour)
	m.now = func() time.Time { return now }
	return m
}

func TestIssueAndValidate_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("super-secret", "identity-core", time.Hour)
	tok, err := m.Issue("alice@example.com", models.RoleCustomer)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := m.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email())
	assert.Equal(t, models.RoleCustomer, claims.Role)
	assert.Equal(t, "identity-core", claims.Issuer)
}

func TestValidate_ExpiredAfterWindow(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(issued)
	tok, err := m.Issue("alice@example.com", models.RoleManager)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(59 * time.Minute) }
	_, err = m.Validate(tok)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(time.Hour + time.Second) }
	_, err = m.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenManager("right", "identity-core", time.Hour).Issue("a@example.com", models.RoleCustomer)
	require.NoError(t, err)

	_, err = NewTokenManager("wrong", "identity-core", time.Hour).Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_WrongIssuer(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenManager("k", "someone-else", time.Hour).Issue("a@example.com", models.RoleCustomer)
	require.NoError(t, err)

	_, err = NewTokenManager("k", "identity-core", time.Hour).Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Malformed(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("k", "identity-core", time.Hour)
	for _, in := range []string{"", "not.a.jwt", strings.Repeat("x", 40)} {
		_, err := m.Validate(in)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", in)
	}
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	claims := Claims{Role: models.RoleManager, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "identity-core",
		Subject:   "mallory@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("k", "identity-core", time.Hour).Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
