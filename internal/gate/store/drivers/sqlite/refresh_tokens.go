package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
)

type refreshTokensRepo struct {
	q querier
}

// SaveRefreshToken upserts on user_id. Concurrent saves for the same user are
// last-write-wins.
func (r *refreshTokensRepo) SaveRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			token_hash = excluded.token_hash,
			expires_at = excluded.expires_at,
			updated_at = unixepoch()`,
		t.UserID, t.TokenHash, t.ExpiresAt.Unix(),
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByUserID(ctx context.Context, userID int64) (domain.RefreshToken, error) {
	var (
		t                               domain.RefreshToken
		expiresAt, createdAt, updatedAt int64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, token_hash, expires_at, created_at, updated_at
		FROM refresh_tokens WHERE user_id = ?`, userID,
	).Scan(&t.UserID, &t.TokenHash, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.ExpiresAt = fromUnix(expiresAt)
	t.CreatedAt = fromUnix(createdAt)
	t.UpdatedAt = fromUnix(updatedAt)
	return t, nil
}

func (r *refreshTokensRepo) DeleteRefreshToken(ctx context.Context, userID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
