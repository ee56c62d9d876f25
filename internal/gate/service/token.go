package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/internal/gate/store"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

type TokenService struct {
	Codec      *jwtx.Codec
	Store      store.Store
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Rotate issues a new refresh token on every refresh, replacing the
	// stored one.
	Rotate bool

	// Now defaults to time.Now. It must agree with the codec's clock.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssuePair mints an access and a refresh token for u and replaces u's stored
// refresh record.
func (s *TokenService) IssuePair(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	return s.issuePair(ctx, s.Store.RefreshTokens(), u)
}

func (s *TokenService) issuePair(ctx context.Context, refreshes store.RefreshTokens, u domain.User) (domain.TokenPair, error) {
	access, err := s.Codec.Mint(u.Email, u.ID, s.AccessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.rotateRefresh(ctx, refreshes, u)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.AccessTTL,
		RefreshTTL:   s.RefreshTTL,
	}, nil
}

// rotateRefresh mints a refresh token and stores its fingerprint in place of
// whatever the user had before.
func (s *TokenService) rotateRefresh(ctx context.Context, refreshes store.RefreshTokens, u domain.User) (string, error) {
	refresh, err := s.Codec.Mint(u.Email, u.ID, s.RefreshTTL)
	if err != nil {
		return "", err
	}

	if err := refreshes.SaveRefreshToken(ctx, domain.RefreshToken{
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refresh),
		ExpiresAt: s.now().Add(s.RefreshTTL),
	}); err != nil {
		return "", fmt.Errorf("save refresh token: %w", err)
	}
	return refresh, nil
}

// Refresh exchanges a refresh token for a new access token. The token must
// verify, and must be the one currently stored for the user it names. The
// returned pair carries a refresh token only when rotation is on.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	id, err := s.Codec.Inspect(refreshToken)
	if err != nil {
		log.Debug("refresh token rejected", "err", err)
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.RefreshTokens().GetRefreshTokenByUserID(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Debug("refresh token has no stored record", "user_id", id.UserID)
				return ErrInvalidRefresh
			}
			return err
		}

		if !cryptox.EqualFingerprint(refreshToken, rec.TokenHash) {
			log.Debug("refresh token does not match stored record", "user_id", id.UserID)
			return ErrInvalidRefresh
		}
		if !s.now().Before(rec.ExpiresAt) {
			return ErrInvalidRefresh
		}

		u, err := tx.Users().GetUserByID(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		access, err := s.Codec.Mint(u.Email, u.ID, s.AccessTTL)
		if err != nil {
			return err
		}
		pair = domain.TokenPair{AccessToken: access, ExpiresIn: s.AccessTTL}

		if s.Rotate {
			refresh, err := s.rotateRefresh(ctx, tx.RefreshTokens(), u)
			if err != nil {
				return err
			}
			pair.RefreshToken = refresh
			pair.RefreshTTL = s.RefreshTTL
		}
		return nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// Revoke drops the user's refresh record so no refresh token of theirs works
// any more. Access tokens already issued stay valid until they expire.
func (s *TokenService) Revoke(ctx context.Context, userID int64) error {
	return s.Store.RefreshTokens().DeleteRefreshToken(ctx, userID)
}
