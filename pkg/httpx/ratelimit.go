package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: Requests per Window, refilled steadily,
// with up to Burst available at once.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Default profiles. The app layer overrides them from RATELIMIT_* variables.
var (
	// StrictLimit guards the login redirect dance.
	StrictLimit = RateLimitConfig{Requests: 10, Window: time.Minute, Burst: 10}

	// ModerateLimit guards the refresh exchange.
	ModerateLimit = RateLimitConfig{Requests: 30, Window: time.Minute, Burst: 30}

	// LenientLimit guards the rest of the API.
	LenientLimit = RateLimitConfig{Requests: 300, Window: time.Minute, Burst: 100}
)

// Valid reports whether every field is positive.
func (c RateLimitConfig) Valid() bool {
	return c.Requests > 0 && c.Window > 0 && c.Burst > 0
}

// KeyExtractor groups requests into buckets. An empty key bypasses limiting.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys on the client IP, honouring X-Forwarded-For and
// X-Real-IP for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// UserKeyExtractor keys on the authenticated user, or returns "" for an
// anonymous request.
func UserKeyExtractor(r *http.Request) string {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return ""
	}
	return "user:" + strconv.FormatInt(id.UserID, 10)
}

// FirstKeyExtractor returns the first non-empty key produced by extractors.
func FirstKeyExtractor(extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				return key
			}
		}
		return ""
	}
}

// RateLimiter holds one token bucket per key.
type RateLimiter struct {
	config RateLimitConfig
	limit  rate.Limit

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

// NewRateLimiter returns a limiter for config.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:      config,
		limit:       rate.Limit(float64(config.Requests) / config.Window.Seconds()),
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// Allow consumes one token for key. When the bucket is empty it reports false
// and how long until the next token.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.config.Burst)
		rl.limiters[key] = limiter
	}
	rl.cleanupLocked(now)
	rl.mu.Unlock()

	if limiter.AllowN(now, 1) {
		return true, 0
	}

	r := limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

// cleanupLocked drops idle buckets at most once per window. A bucket that has
// refilled completely behaves exactly like a new one.
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	if now.Sub(rl.lastCleanup) < max(rl.config.Window, time.Minute) {
		return
	}
	rl.lastCleanup = now

	for key, limiter := range rl.limiters {
		if limiter.TokensAt(now) >= float64(rl.config.Burst) {
			delete(rl.limiters, key)
		}
	}
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// RateLimit returns middleware that answers 429 once the caller's bucket,
// chosen by keyFn, is empty.
func RateLimit(config RateLimitConfig, keyFn KeyExtractor) Middleware {
	rl := NewRateLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			ok, delay := rl.Allow(key)
			if !ok {
				retryAfter := max(int(delay.Seconds()), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
				w.Header().Set("X-RateLimit-Window", config.Window.String())

				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", key,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":             "rate_limit_exceeded",
					"error_description": "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimit(config, IPKeyExtractor)
}

// RateLimitByUser limits by authenticated user, falling back to client IP.
// It must run after TokenAuthenticator.
func RateLimitByUser(config RateLimitConfig) Middleware {
	return RateLimit(config, FirstKeyExtractor(UserKeyExtractor, IPKeyExtractor))
}
