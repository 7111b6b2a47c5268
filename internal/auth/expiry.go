package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryMarginSeconds is subtracted from every lifetime so a token is dropped
// before it can expire in the middle of a request.
const expiryMarginSeconds = 10

// CalculateExpiryDate returns the absolute expiry in milliseconds for a token
// issued at nowMs that lives expiresInSeconds. Lifetimes shorter than the
// margin yield a timestamp in the past.
func CalculateExpiryDate(nowMs, expiresInSeconds int64) int64 {
	return nowMs + (expiresInSeconds-expiryMarginSeconds)*1000
}

func ExpiryTime(now time.Time, expiresInSeconds int64) time.Time {
	return time.UnixMilli(CalculateExpiryDate(now.UnixMilli(), expiresInSeconds)).UTC()
}

// sessionExpiry prefers the provider's expires_in, then the exp claim of a JWT
// access token. Zero means the expiry is unknown.
func sessionExpiry(now time.Time, s *Session) time.Time {
	if s == nil {
		return time.Time{}
	}
	if s.ExpiresIn > 0 {
		return ExpiryTime(now, s.ExpiresIn)
	}
	if exp, ok := jwtExpiry(s.AccessToken); ok {
		return exp.Add(-expiryMarginSeconds * time.Second)
	}
	return time.Time{}
}

// jwtExpiry reads the exp claim without verifying the signature; the token
// is opaque to us and only the provider can vouch for it.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time.UTC(), true
}
