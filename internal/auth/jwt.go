// Package auth issues and verifies session tokens and talks to the OAuth
// providers users sign in with.
//
// SESSION FLOW:
//  1. The client asks /auth/{provider}/url for the provider's consent page.
//  2. The provider redirects back to the client with a one-time code.
//  3. The client posts the code to /auth/login. The server exchanges it for
//     the provider profile, resolves the internal user and issues a token.
//  4. The client sends the token in the X-Auth-Token header on every /api call.
//     RequireAuth verifies it and puts the caller's identity in the context.
//
// Tokens are HS256 JWTs. Verification needs only the secret, so it never
// touches the database. A token cannot be revoked before it expires.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sakif/secretum/internal/apperror"
)

// DefaultTokenTTL is how long a session token stays valid: 30 days.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID string
	Email  string
}

// TokenService signs and verifies session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; a non-positive ttl falls back to DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// claims is the JWT payload. user_id and email are private claims; exp and
// iat come from the embedded RegisteredClaims.
type claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs a token for the given user that expires after the service TTL.
func (s *TokenService) Issue(userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a user id")
	}

	now := s.now()
	c := claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its identity.
//
// Every failure (malformed, wrong signature, wrong algorithm, expired, missing
// user_id) comes back as apperror.AuthInvalid. Callers never learn which check
// failed.
func (s *TokenService) Verify(tokenStr string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		// Pinning the method rejects "none" and RS/HS confusion.
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || c.UserID == "" {
		return Identity{}, apperror.AuthInvalid()
	}
	return Identity{UserID: c.UserID, Email: c.Email}, nil
}
