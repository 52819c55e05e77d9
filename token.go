package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired inspects a cached JWT's exp claim without verifying the
// signature; signature verification belongs to the backend. Opaque tokens
// and tokens without an exp claim are treated as non-expiring.
func tokenExpired(raw string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()

	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return false
	}

	if claims.ExpiresAt == nil {
		return false
	}

	return claims.ExpiresAt.Time.Before(now)
}
