package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

type Config struct {
	Issuer    string // Optional: iss claim written into tokens (default: tokengate)
	SecretKey string // Optional: HS256 and cookie sealing secret; random per process when empty

	AccessTTL       time.Duration // Access token lifetime (default: 2h)
	RefreshTTL      time.Duration // Refresh token lifetime (default: 14 days)
	RefreshRotation bool          // Issue a new refresh token on every refresh (default: false)

	OAuth2Provider     string   // Identity provider name (default: google)
	OAuth2ClientID     string   // Required: OAuth2 client id registered with the provider
	OAuth2ClientSecret string   // Required: OAuth2 client secret
	OAuth2AuthURL      string   // Optional: overrides the provider's authorization endpoint
	OAuth2TokenURL     string   // Optional: overrides the provider's token endpoint
	OAuth2UserInfoURL  string   // Optional: overrides the provider's userinfo endpoint
	OAuth2Scopes       []string // Optional: requested scopes (default: openid email profile)

	BaseURL      string // Public URL of this service, used for the provider callback
	LandingURL   string // Browser destination after login (default: /articles)
	FailureURL   string // Browser destination after a failed login (default: /login?error)
	CookieSecure bool   // Mark cookies Secure (default: true outside dev)

	LoginLimit   httpx.RateLimitConfig
	RefreshLimit httpx.RateLimitConfig
	APILimit     httpx.RateLimitConfig

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./gate.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired refresh token cleanup interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:          getEnvOrDefault("AUTH_ISSUER", "tokengate"),
		SecretKey:       os.Getenv("AUTH_SECRET_KEY"),
		AccessTTL:       getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:      getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		RefreshRotation: getEnvBoolOrDefault("AUTH_REFRESH_ROTATION", false),

		OAuth2Provider:     strings.ToLower(getEnvOrDefault("AUTH_OAUTH2_PROVIDER", "google")),
		OAuth2ClientID:     os.Getenv("AUTH_OAUTH2_CLIENT_ID"),
		OAuth2ClientSecret: os.Getenv("AUTH_OAUTH2_CLIENT_SECRET"),
		OAuth2AuthURL:      os.Getenv("AUTH_OAUTH2_AUTH_URL"),
		OAuth2TokenURL:     os.Getenv("AUTH_OAUTH2_TOKEN_URL"),
		OAuth2UserInfoURL:  os.Getenv("AUTH_OAUTH2_USERINFO_URL"),
		OAuth2Scopes:       httpx.SplitList(os.Getenv("AUTH_OAUTH2_SCOPES")),

		LandingURL: getEnvOrDefault("AUTH_LANDING_URL", "/articles"),
		FailureURL: getEnvOrDefault("AUTH_FAILURE_URL", "/login?error"),

		LoginLimit:   getEnvRateLimitOrDefault("RATELIMIT_LOGIN", httpx.StrictLimit),
		RefreshLimit: getEnvRateLimitOrDefault("RATELIMIT_REFRESH", httpx.ModerateLimit),
		APILimit:     getEnvRateLimitOrDefault("RATELIMIT_API", httpx.LenientLimit),

		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "gate.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	cfg.BaseURL = strings.TrimSuffix(
		getEnvOrDefault("AUTH_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)),
		"/",
	)
	cfg.CookieSecure = getEnvBoolOrDefault("AUTH_COOKIE_SECURE", cfg.Env != "dev")

	return cfg
}

// CallbackURL is the redirect URI registered with the provider.
func (c Config) CallbackURL() string {
	return c.BaseURL + "/login/oauth2/code/" + c.OAuth2Provider
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvRateLimitOrDefault reads <prefix>_REQUESTS, <prefix>_WINDOW and
// <prefix>_BURST over def. An override that leaves the config unusable is
// ignored as a whole.
func getEnvRateLimitOrDefault(prefix string, def httpx.RateLimitConfig) httpx.RateLimitConfig {
	cfg := httpx.RateLimitConfig{
		Requests: getEnvIntOrDefault(prefix+"_REQUESTS", def.Requests),
		Window:   getEnvDurationOrDefault(prefix+"_WINDOW", def.Window),
		Burst:    getEnvIntOrDefault(prefix+"_BURST", def.Burst),
	}
	if !cfg.Valid() {
		return def
	}
	return cfg
}
