package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/cookiex"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// RefreshCookie carries the refresh token. It is never placed in a URL.
const RefreshCookie = "refresh_token"

// maxRefreshBody bounds the optional JSON body of a refresh request.
const maxRefreshBody = 4 << 10

// TokenHandler serves /api/token.
type TokenHandler struct {
	Tokens  *service.TokenService
	Cookies cookiex.Options
}

// HandleRefresh godoc
//
//	@Summary		Refresh the access token
//	@Description	Exchanges the refresh token for a new access token. The refresh token is read from the
//	@Description	refresh_token cookie, falling back to a JSON body only when the cookie is absent or empty.
//	@Description	A stale cookie therefore shadows a body token. Every failure answers 401 invalid_token.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	false	"Refresh token, when not sent as a cookie"
//	@Success		200		{object}	authsdk.TokenResponse	"accessToken, tokenType, expiresIn"
//	@Failure		401		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/api/token [post].
func (h *TokenHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	raw := refreshTokenFrom(r)
	if raw == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	pair, err := h.Tokens.Refresh(ctx, raw)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		log.Error("refresh failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	if pair.RefreshToken != "" {
		cookiex.Set(w, RefreshCookie, pair.RefreshToken, pair.RefreshTTL, h.Cookies)
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(pair.ExpiresIn / time.Second),
	})
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Deletes the caller's refresh token so it can no longer be exchanged, and clears the cookie.
//	@Tags			Token
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/api/token [delete].
func (h *TokenHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// /api/token is exempt from the prefix guard, so check here.
	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.Tokens.Revoke(ctx, id.UserID); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	cookiex.Delete(w, r, RefreshCookie, h.Cookies)
	w.WriteHeader(http.StatusNoContent)
}

// refreshTokenFrom prefers the cookie and falls back to a JSON body. Only an
// absent or empty cookie falls back: a stale cookie wins over a valid body,
// and the exchange then fails.
func refreshTokenFrom(r *http.Request) string {
	if v, ok := cookiex.Read(r, RefreshCookie); ok && v != "" {
		return v
	}

	if r.Body == nil || !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return ""
	}
	var body authsdk.RefreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRefreshBody)).Decode(&body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.RefreshToken)
}
