// Package token issues and validates the HS256 JWTs used to authenticate
// dashboard users on the management API.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails validation, including
// expired tokens. Callers should not distinguish further; the response is
// 401 either way.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "switchboard"

// Claims are the JWT claims carried by an access token. The subject is the
// user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Service signs and verifies access tokens with a shared HMAC secret.
type Service struct {
	signingKey []byte
	ttl        time.Duration
}

// NewService creates a token service. ttl bounds the lifetime of issued
// tokens.
func NewService(signingKey string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		ttl:        ttl,
	}
}

// Issue signs a new access token for userID.
func (s *Service) Issue(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Validate parses tokenString and returns the user ID it was issued for.
// Returns [ErrInvalidToken] for anything that does not verify: bad signature,
// wrong algorithm, expiry, or a malformed subject.
func (s *Service) Validate(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
