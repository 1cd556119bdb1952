package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSecret(seed string) string {
	return strings.Repeat(seed, 32)[:32]
}

func TestJWTMaker(t *testing.T) {
	maker, err := NewJWTMaker(testSecret("a"), testSecret("r"))
	require.NoError(t, err)

	userID := int64(42)
	duration := time.Minute

	issuedAt := time.Now()
	expiredAt := issuedAt.Add(duration)

	tok, payload, err := maker.CreateToken(userID, "technician", duration, TokenTypeAccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.NotNil(t, payload)

	payload, err = maker.VerifyToken(tok, TokenTypeAccessToken)
	require.NoError(t, err)
	require.NotNil(t, payload)

	require.NotZero(t, payload.ID)
	require.Equal(t, userID, payload.UserID)
	require.Equal(t, "technician", payload.Role)
	require.Equal(t, TokenTypeAccessToken, payload.TokenType)
	require.WithinDuration(t, issuedAt, payload.IssuedAt, time.Second)
	require.WithinDuration(t, expiredAt, payload.ExpiredAt, time.Second)
}

func TestExpiredJWTToken(t *testing.T) {
	maker, err := NewJWTMaker(testSecret("a"), testSecret("r"))
	require.NoError(t, err)

	tok, _, err := maker.CreateToken(7, "admin", -time.Minute, TokenTypeAccessToken)
	require.NoError(t, err)

	payload, err := maker.VerifyToken(tok, TokenTypeAccessToken)
	require.ErrorIs(t, err, ErrExpiredToken)
	require.Nil(t, payload)
}

func TestJWTTokenTypeMismatch(t *testing.T) {
	// Same secret for both types so only the type check can reject.
	secret := testSecret("s")
	maker, err := NewJWTMaker(secret, secret)
	require.NoError(t, err)

	tok, _, err := maker.CreateToken(7, "admin", time.Minute, TokenTypeRefreshToken)
	require.NoError(t, err)

	payload, err := maker.VerifyToken(tok, TokenTypeAccessToken)
	require.ErrorIs(t, err, ErrInvalidTokenType)
	require.Nil(t, payload)
}

func TestJWTWrongSecretRejected(t *testing.T) {
	maker1, err := NewJWTMaker(testSecret("a"), testSecret("r"))
	require.NoError(t, err)
	maker2, err := NewJWTMaker(testSecret("x"), testSecret("y"))
	require.NoError(t, err)

	tok, _, err := maker1.CreateToken(7, "admin", time.Minute, TokenTypeAccessToken)
	require.NoError(t, err)

	payload, err := maker2.VerifyToken(tok, TokenTypeAccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Nil(t, payload)
}

func TestNewJWTMakerShortSecret(t *testing.T) {
	_, err := NewJWTMaker("short", "short")
	require.Error(t, err)
}
