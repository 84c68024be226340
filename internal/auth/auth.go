// Package auth issues and verifies the API's session tokens.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

type contextKey struct{}

// Claims is the JWT payload for an authenticated session.
type Claims struct {
	jwt.RegisteredClaims
}

// Service signs and parses HS256 session tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates a token service. ttlHours <= 0 falls back to 7 days.
func NewService(secret string, ttlHours int) *Service {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given user ID.
func (s *Service) Issue(userID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign token")
	}
	return token, nil
}

// Verify parses a token and returns the user ID it was issued to.
func (s *Service) Verify(tokenString string) (string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.Errorf("auth: unexpected signing method %s", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return "", eris.Wrap(err, "auth: parse token")
	}
	if !token.Valid || claims.Subject == "" {
		return "", eris.New("auth: invalid token")
	}
	return claims.Subject, nil
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID extracts the authenticated user ID from the request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}
