package service_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/internal/gate/store"
	"github.com/aussiebroadwan/tokengate/internal/gate/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *sqlite.Store
	codec  *jwtx.Codec
	tokens *service.TokenService
	login  *service.LoginService
	clock  *time.Time
}

func newFixture(t *testing.T, rotate bool) *fixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	clock := time.Now()
	f := &fixture{store: s, clock: &clock}
	now := func() time.Time { return *f.clock }

	f.codec, err = jwtx.NewCodec(jwtx.CodecOptions{Key: []byte("test-key-test-key-test-key-12345"), Issuer: "test", Now: now})
	require.NoError(t, err)

	f.tokens = &service.TokenService{
		Codec:      f.codec,
		Store:      s,
		AccessTTL:  2 * time.Hour,
		RefreshTTL: 14 * 24 * time.Hour,
		Rotate:     rotate,
		Now:        now,
	}
	f.login = &service.LoginService{
		Store:  s,
		Users:  &service.UserService{Store: s},
		Tokens: f.tokens,
	}
	return f
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func (f *fixture) loginAs(t *testing.T, email string) (domain.User, domain.TokenPair) {
	t.Helper()
	u, pair, err := f.login.CompleteLogin(context.Background(), "google", domain.Profile{Email: email, Name: "Name"})
	require.NoError(t, err)
	return u, pair
}

func TestCompleteLoginCreatesUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	u, pair := f.loginAs(t, "user@x.com")
	require.NotZero(t, u.ID)
	require.Equal(t, "google", u.Provider)
	require.Equal(t, domain.RoleUser, u.Role)
	require.Empty(t, u.PasswordHash)
	require.Equal(t, 2*time.Hour, pair.ExpiresIn)
	require.Equal(t, 14*24*time.Hour, pair.RefreshTTL)

	require.True(t, f.codec.Verify(pair.AccessToken))
	id, err := f.codec.Claims(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, jwtx.Identity{Subject: "user@x.com", UserID: u.ID}, id)

	rec, err := f.store.RefreshTokens().GetRefreshTokenByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, cryptox.FingerprintToken(pair.RefreshToken), rec.TokenHash)
	require.NotEqual(t, pair.RefreshToken, rec.TokenHash)
}

func TestCompleteLoginExistingUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	first, firstPair := f.loginAs(t, "user@x.com")

	second, secondPair, err := f.login.CompleteLogin(ctx, "google",
		domain.Profile{Email: "user@x.com", Name: "Renamed", Picture: "https://img/p.png"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Renamed", second.Name)

	stored, err := f.store.Users().GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "https://img/p.png", stored.Picture)

	// The second login replaced the first refresh token.
	_, err = f.tokens.Refresh(ctx, firstPair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidRefresh)
	_, err = f.tokens.Refresh(ctx, secondPair.RefreshToken)
	require.NoError(t, err)
}

func TestCompleteLoginRejectsEmptyEmail(t *testing.T) {
	f := newFixture(t, false)
	_, _, err := f.login.CompleteLogin(context.Background(), "google", domain.Profile{Name: "No Email"})
	require.ErrorIs(t, err, service.ErrUserResolution)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("stored token yields new access token", func(t *testing.T) {
		f := newFixture(t, false)
		u, pair := f.loginAs(t, "user@x.com")
		f.advance(time.Minute)

		got, err := f.tokens.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.True(t, f.codec.Verify(got.AccessToken))
		require.NotEqual(t, pair.AccessToken, got.AccessToken)
		require.Empty(t, got.RefreshToken)

		id, err := f.codec.Claims(got.AccessToken)
		require.NoError(t, err)
		require.Equal(t, u.ID, id.UserID)

		// Without rotation the same refresh token keeps working.
		_, err = f.tokens.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("validly signed but not stored", func(t *testing.T) {
		f := newFixture(t, false)
		u, _ := f.loginAs(t, "user@x.com")

		other, err := f.codec.Mint("user@x.com", u.ID, 14*24*time.Hour)
		require.NoError(t, err)
		_, err = f.tokens.Refresh(ctx, other)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})

	t.Run("another user's token", func(t *testing.T) {
		f := newFixture(t, false)
		_, alice := f.loginAs(t, "alice@x.com")
		bob, _ := f.loginAs(t, "bob@x.com")

		// A well signed token naming Bob is still not the one Bob holds.
		forged, err := f.codec.Mint("bob@x.com", bob.ID, time.Hour)
		require.NoError(t, err)
		_, err = f.tokens.Refresh(ctx, forged)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)

		_, err = f.tokens.Refresh(ctx, alice.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("garbage and expired", func(t *testing.T) {
		f := newFixture(t, false)
		_, pair := f.loginAs(t, "user@x.com")

		_, err := f.tokens.Refresh(ctx, "")
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
		_, err = f.tokens.Refresh(ctx, "not.a.jwt")
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
		_, err = f.tokens.Refresh(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)

		f.advance(15 * 24 * time.Hour)
		_, err = f.tokens.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})

	t.Run("rotation replaces the stored token", func(t *testing.T) {
		f := newFixture(t, true)
		u, pair := f.loginAs(t, "user@x.com")

		got, err := f.tokens.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, got.RefreshToken)
		require.NotEqual(t, pair.RefreshToken, got.RefreshToken)

		rec, err := f.store.RefreshTokens().GetRefreshTokenByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, cryptox.FingerprintToken(got.RefreshToken), rec.TokenHash)

		_, err = f.tokens.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
		_, err = f.tokens.Refresh(ctx, got.RefreshToken)
		require.NoError(t, err)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	u, pair := f.loginAs(t, "user@x.com")

	require.NoError(t, f.tokens.Revoke(ctx, u.ID))
	_, err := f.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidRefresh)

	// The access token is unaffected.
	require.True(t, f.codec.Verify(pair.AccessToken))
}

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	u, _ := f.loginAs(t, "user@x.com")
	require.NoError(t, f.store.RefreshTokens().SaveRefreshToken(ctx, domain.RefreshToken{
		UserID: u.ID, TokenHash: "stale", ExpiresAt: time.Now().Add(-time.Minute),
	}))

	var buf bytes.Buffer
	hk := service.NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(&buf, nil)), 0)
	require.Equal(t, time.Hour, hk.Interval)
	require.Equal(t, int64(1), hk.Cleanup(ctx))

	_, err := f.store.RefreshTokens().GetRefreshTokenByUserID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Contains(t, buf.String(), "refresh_tokens_deleted=1")
}

func TestHousekeepingStartStop(t *testing.T) {
	f := newFixture(t, false)
	hk := service.NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), time.Hour)
	hk.Start()
	hk.Stop()
}
