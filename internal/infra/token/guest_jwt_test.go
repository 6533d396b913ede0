package token

import (
	"testing"
	"time"

	"cartengine/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func TestGuestJWT_MintAndParse(t *testing.T) {
	g := NewGuestJWT("guest-secret", 24*time.Hour)
	id := uuid.NewString()

	tok, exp, err := g.Mint(id, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(24*time.Hour), exp)

	got, err := g.Parse(tok, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestGuestJWT_Expired(t *testing.T) {
	g := NewGuestJWT("guest-secret", time.Hour)
	tok, _, err := g.Mint(uuid.NewString(), t0)
	require.NoError(t, err)

	_, err = g.Parse(tok, t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, usecase.ErrInvalidGuestToken)
}

func TestGuestJWT_WrongSecret(t *testing.T) {
	tok, _, err := NewGuestJWT("a", time.Hour).Mint(uuid.NewString(), t0)
	require.NoError(t, err)

	_, err = NewGuestJWT("b", time.Hour).Parse(tok, t0)
	assert.ErrorIs(t, err, usecase.ErrInvalidGuestToken)
}

func TestGuestJWT_RejectsAccessToken(t *testing.T) {
	// typが無い（ユーザー用トークン）はゲストとして受け付けない
	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "1",
		"role": "USER",
		"exp":  t0.Add(time.Hour).Unix(),
	})
	raw, err := access.SignedString([]byte("guest-secret"))
	require.NoError(t, err)

	_, err = NewGuestJWT("guest-secret", time.Hour).Parse(raw, t0)
	assert.ErrorIs(t, err, usecase.ErrInvalidGuestToken)
}

func TestGuestJWT_Garbage(t *testing.T) {
	_, err := NewGuestJWT("guest-secret", time.Hour).Parse("not-a-jwt", t0)
	assert.ErrorIs(t, err, usecase.ErrInvalidGuestToken)
}
