package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// AccessTokenParam is the query parameter consulted when no Authorization
// header is present.
const AccessTokenParam = "access_token"

// TokenVerifier checks an access token and returns the identity it carries.
type TokenVerifier interface {
	Inspect(token string) (jwtx.Identity, error)
}

// BearerToken extracts the access token from the Authorization header, or
// from the access_token query parameter when the header is absent.
func BearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		scheme, token, ok := strings.Cut(authz, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get(AccessTokenParam)
}

// TokenAuthenticator attaches the caller's identity to the request context
// when it presents a valid access token. It never rejects a request: absent
// or invalid tokens pass through anonymously and ProtectPrefix decides.
func TokenAuthenticator(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			id, err := v.Inspect(raw)
			if err != nil {
				// The cause is diagnostic only; the response is identical for
				// every failure.
				slogx.FromContext(ctx).Debug("access token rejected", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx = WithIdentity(ctx, Identity{Subject: id.Subject, UserID: id.UserID, Role: RoleUser})
			ctx = slogx.With(ctx, "user_id", id.UserID)
			slogx.Promote(w, slogx.FromContext(ctx))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProtectPrefix rejects requests under prefix that carry no identity, except
// for the exempt paths. Paths outside prefix are untouched.
func ProtectPrefix(prefix string, exempt ...string) Middleware {
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := IdentityFromContext(r.Context()); !ok {
				WriteBearerError(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteBearerError writes an RFC 6750 invalid_token challenge.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
