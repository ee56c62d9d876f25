package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/provider"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "tokengate", cfg.Issuer)
	require.Equal(t, 2*time.Hour, cfg.AccessTTL)
	require.Equal(t, 14*24*time.Hour, cfg.RefreshTTL)
	require.False(t, cfg.RefreshRotation)
	require.Equal(t, "google", cfg.OAuth2Provider)
	require.Equal(t, "/articles", cfg.LandingURL)
	require.Equal(t, "/login?error", cfg.FailureURL)
	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Equal(t, "http://localhost:8080/login/oauth2/code/google", cfg.CallbackURL())
	require.Equal(t, httpx.StrictLimit, cfg.LoginLimit)
	require.False(t, cfg.CookieSecure, "dev runs over plain http")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_ACCESS_TTL", "15m")
	t.Setenv("AUTH_REFRESH_TTL", "60") // minutes
	t.Setenv("AUTH_REFRESH_ROTATION", "true")
	t.Setenv("AUTH_OAUTH2_PROVIDER", "Google")
	t.Setenv("AUTH_OAUTH2_SCOPES", "openid, email")
	t.Setenv("AUTH_BASE_URL", "https://gate.example.com/")
	t.Setenv("RATELIMIT_LOGIN_REQUESTS", "5")
	t.Setenv("RATELIMIT_REFRESH_BURST", "0")

	cfg := LoadConfig()

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, time.Hour, cfg.RefreshTTL)
	require.True(t, cfg.RefreshRotation)
	require.Equal(t, []string{"openid", "email"}, cfg.OAuth2Scopes)
	require.Equal(t, "https://gate.example.com/login/oauth2/code/google", cfg.CallbackURL())
	require.True(t, cfg.CookieSecure)
	require.Equal(t, 5, cfg.LoginLimit.Requests)
	require.Equal(t, httpx.StrictLimit.Window, cfg.LoginLimit.Window)

	// An unusable override falls back to the whole default profile.
	require.Equal(t, httpx.ModerateLimit, cfg.RefreshLimit)
}

func TestInitKeys(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("shared secret", func(t *testing.T) {
		cfg := Config{Issuer: "tokengate", SecretKey: "correct horse battery staple"}
		a, err := InitKeys(cfg, logger)
		require.NoError(t, err)
		b, err := InitKeys(cfg, logger)
		require.NoError(t, err)

		token, err := a.Codec.Mint("user@x.com", 1, time.Minute)
		require.NoError(t, err)
		require.True(t, b.Codec.Verify(token))

		sealed, err := a.Sealer.Seal("payload", "ctx")
		require.NoError(t, err)
		opened, err := b.Sealer.Open(sealed, "ctx")
		require.NoError(t, err)
		require.Equal(t, "payload", opened)
	})

	t.Run("ephemeral secret", func(t *testing.T) {
		a, err := InitKeys(Config{}, logger)
		require.NoError(t, err)
		b, err := InitKeys(Config{}, logger)
		require.NoError(t, err)

		token, err := a.Codec.Mint("user@x.com", 1, time.Minute)
		require.NoError(t, err)
		require.True(t, a.Codec.Verify(token))
		require.False(t, b.Codec.Verify(token))
	})
}

func testConfig() Config {
	cfg := LoadConfig()
	cfg.DatabaseFile = ":memory:"
	cfg.OAuth2ClientID = "client"
	cfg.OAuth2ClientSecret = "secret"
	cfg.LogLevel = "error"
	return cfg
}

func TestNewRequiresClientID(t *testing.T) {
	cfg := testConfig()
	cfg.OAuth2ClientID = ""

	_, err := New(cfg)
	require.ErrorIs(t, err, provider.ErrConfig)
}

func TestNewServes(t *testing.T) {
	application, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.db.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	resp, err := client.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/oauth2/authorization/google")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "accounts.google.com", loc.Host)
	require.Equal(t, "client", loc.Query().Get("client_id"))
	require.Equal(t, "S256", loc.Query().Get("code_challenge_method"))
	require.Equal(t, "http://localhost:8080/login/oauth2/code/google", loc.Query().Get("redirect_uri"))

	resp, err = client.Get(srv.URL + "/api/me")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
