// Package auth issues and verifies the bearer credential described in the
// Identity section: a user authenticates once via /auth/register or
// /auth/login and receives a token embedding the user id and an absolute
// expiry; every subsequent request or real-time connection carries it.
// Grounded on the JWT verifier/issuer split used for bearer auth elsewhere
// in the pack (HS256, "sub"/"iat"/"exp" claims), adapted from a token
// verifier to a service that also hashes and checks passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWeakSecret   = errors.New("jwt secret must be at least 32 bytes")
)

// minSecretBytes matches HS256's recommended minimum key size (RFC 2104).
const minSecretBytes = 32

// TokenIssuer issues and verifies HS256 bearer credentials.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds a TokenIssuer. Credentials it issues are valid for ttl.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("%w (got %d)", ErrWeakSecret, len(secret))
	}
	return &TokenIssuer{secret: secret, ttl: ttl}, nil
}

// Issue mints a bearer credential embedding userID and an absolute expiry.
func (t *TokenIssuer) Issue(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates tokenString and returns the user id from its "sub" claim.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
