package domain

import "time"

// TokenPair is what a successful login yields: a short-lived access token and
// the long-lived refresh token that can be exchanged for more of them.
type TokenPair struct {
	AccessToken  string
	RefreshToken string        // empty when a refresh did not rotate
	ExpiresIn    time.Duration // access token lifetime
	RefreshTTL   time.Duration
}

// RefreshToken models the single refresh token record held per user. Saving
// a new one replaces the old one.
type RefreshToken struct {
	UserID    int64
	TokenHash string // base64url SHA-256 of the token
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
