package service

import (
	"context"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/internal/gate/store"
)

// LoginService turns a successful provider login into our own token pair.
type LoginService struct {
	Store  store.Store
	Users  *UserService
	Tokens *TokenService
}

// CompleteLogin resolves the user for profile and issues a fresh token pair,
// replacing any refresh token the user held. Both steps share one
// transaction so a failed issue leaves no half-created account behind.
func (s *LoginService) CompleteLogin(
	ctx context.Context,
	provider string,
	profile domain.Profile,
) (domain.User, domain.TokenPair, error) {
	var (
		user domain.User
		pair domain.TokenPair
	)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = s.Users.ResolveUser(ctx, tx.Users(), provider, profile)
		if err != nil {
			return err
		}
		pair, err = s.Tokens.issuePair(ctx, tx.RefreshTokens(), user)
		return err
	})
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	return user, pair, nil
}
