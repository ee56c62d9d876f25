package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers implement it and expose
// sub-repositories so a transaction scoped Store can hand out the same repos.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users is the identity store. Email is the natural key.
type Users interface {
	GetUserByID(ctx context.Context, id int64) (domain.User, error)

	// GetUserByEmail returns ErrNotFound when no account uses email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u and returns it with the assigned ID and timestamps.
	// Returns ErrAlreadyExists if the email is taken.
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)

	// UpdateProfile replaces the display fields and bumps updated_at.
	UpdateProfile(ctx context.Context, id int64, name, picture string) error
}

// RefreshTokens holds at most one record per user.
type RefreshTokens interface {
	// SaveRefreshToken inserts the user's record or replaces the existing one.
	SaveRefreshToken(ctx context.Context, t domain.RefreshToken) error

	GetRefreshTokenByUserID(ctx context.Context, userID int64) (domain.RefreshToken, error)

	// DeleteRefreshToken is a no-op when the user has no record.
	DeleteRefreshToken(ctx context.Context, userID int64) error

	// DeleteExpiredRefreshTokens removes records expired at now and reports
	// how many went.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
