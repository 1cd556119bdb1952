package token

import "time"

// Maker issues and verifies auth tokens.
type Maker interface {
	// CreateToken mints a token of the given type for a user and returns it
	// together with its payload.
	CreateToken(userID int64, role string, duration time.Duration, tokenType string) (string, *Payload, error)

	// VerifyToken checks signature, expiry and token type.
	VerifyToken(token string, expectedType string) (*Payload, error)
}
