package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/internal/gate/store"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, id)
}

// ResolveUser finds the account for profile by email, creating it on first
// login. An existing account gets its name and picture refreshed from the
// provider. users is usually the repo of an open transaction.
func (s *UserService) ResolveUser(
	ctx context.Context,
	users store.Users,
	provider string,
	profile domain.Profile,
) (domain.User, error) {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return domain.User{}, fmt.Errorf("%w: profile has no email", ErrUserResolution)
	}

	u, err := users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Name == profile.Name && u.Picture == profile.Picture {
			return u, nil
		}
		if err := users.UpdateProfile(ctx, u.ID, profile.Name, profile.Picture); err != nil {
			return domain.User{}, fmt.Errorf("%w: update profile: %w", ErrUserResolution, err)
		}
		u.Name, u.Picture = profile.Name, profile.Picture
		return u, nil

	case errors.Is(err, store.ErrNotFound):
		created, err := users.CreateUser(ctx, domain.User{
			Email:    email,
			Name:     profile.Name,
			Picture:  profile.Picture,
			Provider: provider,
			Role:     domain.RoleUser,
		})
		if err != nil {
			return domain.User{}, fmt.Errorf("%w: create: %w", ErrUserResolution, err)
		}
		slogx.FromContext(ctx).Info("user created", "user_id", created.ID, "provider", provider)
		return created, nil

	default:
		return domain.User{}, fmt.Errorf("%w: lookup: %w", ErrUserResolution, err)
	}
}
