package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretSize = 32

// JWTMaker signs HS256 tokens. Access and refresh tokens use separate
// secrets so a leaked access secret cannot forge refresh tokens.
type JWTMaker struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewJWTMaker(accessSecret, refreshSecret string) (*JWTMaker, error) {
	if len(accessSecret) < minSecretSize || len(refreshSecret) < minSecretSize {
		return nil, fmt.Errorf("secret must be at least %d characters", minSecretSize)
	}
	return &JWTMaker{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}, nil
}

func (m *JWTMaker) CreateToken(userID int64, role string, duration time.Duration, tokenType string) (string, *Payload, error) {
	payload, err := NewPayload(userID, role, duration, tokenType)
	if err != nil {
		return "", nil, err
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := tok.SignedString(m.secretFor(tokenType))
	if err != nil {
		return "", nil, err
	}
	return signed, payload, nil
}

func (m *JWTMaker) VerifyToken(tokenStr string, expectedType string) (*Payload, error) {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretFor(expectedType), nil
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Payload{}, keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	payload, ok := parsed.Claims.(*Payload)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if payload.TokenType != expectedType {
		return nil, ErrInvalidTokenType
	}
	return payload, nil
}

func (m *JWTMaker) secretFor(tokenType string) []byte {
	if tokenType == TokenTypeRefreshToken {
		return m.refreshSecret
	}
	return m.accessSecret
}
