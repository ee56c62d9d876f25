package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Access tokens travel on every API call so they
// stay short; refresh tokens only ever reach the refresh endpoint.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 2 * time.Hour

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour
)

// Claims is the payload carried by both access and refresh tokens. The two
// token classes share this shape; only the TTL and the storage side effect
// differ.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the numeric identity of the user the token was minted for.
	UserID int64 `json:"id"`
}

// Identity is the strongly typed view of a token payload handed to callers.
type Identity struct {
	Subject string
	UserID  int64
}

// NewClaims builds claims for subject/userID valid from now for ttl. exp is
// carried in whole seconds, so for a positive ttl it is rounded up: a token
// never expires earlier than asked. A non-positive ttl stays expired.
func NewClaims(subject string, userID int64, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt(now, ttl)),
		},
		UserID: userID,
	}
}

// Identity extracts the subject and numeric identity.
func (c *Claims) Identity() Identity {
	return Identity{Subject: c.Subject, UserID: c.UserID}
}

// ValidateExpiry ensures the token hasn't expired at now. A token is valid
// strictly before its exp; a missing exp is treated as expired since every
// token we mint carries one.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if ttl <= 0 {
		return exp
	}
	if whole := exp.Truncate(time.Second); whole.Before(exp) {
		return whole.Add(time.Second)
	}
	return exp
}
