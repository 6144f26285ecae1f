// Package server verifies the signed credential presented at connect time
// and extracts the authenticated user identity.
package server

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication failures reported by the Verifier. Both are fatal to the
// connection attempt; no session is created.
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// tokenClaims is the claims shape carried by client tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Verifier validates HS256-signed tokens against a shared secret. It holds
// no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify validates the token's signature and expiry and returns the userId
// claim. It returns ErrMissingToken for an empty token and ErrInvalidToken
// when verification fails or the claim is absent.
func (v *Verifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
