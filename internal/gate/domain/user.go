package domain

import "time"

// RoleUser is the single role granted to every authenticated caller.
const RoleUser = "ROLE_USER"

type User struct {
	ID           int64
	Email        string
	Name         string
	Picture      string
	Provider     string // identity provider that created the account
	PasswordHash string // always empty for provider-created users
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is what an identity provider tells us about a user.
type Profile struct {
	Email   string
	Name    string
	Picture string
}
