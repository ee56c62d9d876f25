package sqlite

import (
	"context"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/internal/gate/store"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, name, picture, provider, password_hash, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                    domain.User
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.Provider,
		&u.PasswordHash, &u.Role, &createdAt, &updatedAt); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.Role == "" {
		u.Role = domain.RoleUser
	}

	created, err := scanUser(r.q.QueryRowContext(ctx, `
		INSERT INTO users (email, name, picture, provider, password_hash, role)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		u.Email, u.Name, u.Picture, u.Provider, u.PasswordHash, u.Role,
	))
	if err != nil {
		return domain.User{}, mapConstraint(err)
	}
	return created, nil
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id int64, name, picture string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET name = ?, picture = ?, updated_at = unixepoch()
		WHERE id = ?`, name, picture, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
