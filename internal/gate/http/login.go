package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/authreq"
	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/cookiex"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
	"golang.org/x/oauth2"
)

// LandingParam is the query parameter the landing page reads the access
// token from.
const LandingParam = "token"

// Provider is an OAuth2 identity provider able to run the code flow.
type Provider interface {
	Name() string
	Scopes() []string
	RedirectURL() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (domain.Profile, error)
}

// LoginHandler runs the browser side of the provider login.
type LoginHandler struct {
	Providers map[string]Provider
	Cabinet   *authreq.Cabinet
	Logins    *service.LoginService
	Cookies   cookiex.Options

	// LandingURL receives the browser after a successful login unless the
	// login asked for another same-origin path.
	LandingURL string

	// FailureURL receives the browser after any failed login.
	FailureURL string

	Now func() time.Time
}

func (h *LoginHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// HandleStart godoc
//
//	@Summary		Start a provider login
//	@Description	Stores the authorization request in a sealed cookie and redirects to the identity provider.
//	@Tags			Login
//	@Param			provider		path	string	true	"Identity provider"	Enums(google)
//	@Param			redirect_uri	query	string	false	"Same-origin path to land on after login"
//	@Success		302
//	@Failure		404	{object}	authsdk.ErrorResponse	"unknown provider"
//	@Failure		500	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/oauth2/authorization/{provider} [get].
func (h *LoginHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	p, ok := h.Providers[r.PathValue("provider")]
	if !ok {
		authsdk.ErrUnknownProvider.WriteError(w)
		return
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate state", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	verifier := oauth2.GenerateVerifier()

	req := &domain.AuthorizationRequest{
		Provider:     p.Name(),
		Scopes:       p.Scopes(),
		State:        state,
		RedirectURI:  p.RedirectURL(),
		CodeVerifier: verifier,
		LandingURL:   h.landing(r.URL.Query().Get("redirect_uri")),
		CreatedAt:    h.now(),
	}
	if err := h.Cabinet.Save(w, r, req); err != nil {
		log.Error("failed to save authorization request", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, p.AuthCodeURL(state, verifier), http.StatusFound)
}

// HandleCallback godoc
//
//	@Summary		Provider callback
//	@Description	Completes the login. On success sets the refresh_token cookie and redirects to the landing
//	@Description	page with the access token in the token query parameter; on failure redirects to the failure page.
//	@Tags			Login
//	@Param			provider	path	string	true	"Identity provider"	Enums(google)
//	@Param			code		query	string	false	"Authorization code"
//	@Param			state		query	string	true	"State issued by the login start"
//	@Param			error		query	string	false	"Error reported by the provider"
//	@Success		302
//	@Router			/login/oauth2/code/{provider} [get].
func (h *LoginHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	req, ok := h.Cabinet.Load(r)
	if !ok {
		h.fail(w, r, "no authorization request")
		return
	}
	if req.Provider != r.PathValue("provider") {
		h.fail(w, r, "provider mismatch")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.State), []byte(q.Get("state"))) != 1 {
		h.fail(w, r, "state mismatch")
		return
	}
	if perr := q.Get("error"); perr != "" {
		h.fail(w, r, "provider error", "error", perr, "error_description", q.Get("error_description"))
		return
	}
	code := q.Get("code")
	if code == "" {
		h.fail(w, r, "missing code")
		return
	}

	p, ok := h.Providers[req.Provider]
	if !ok {
		h.fail(w, r, "unknown provider")
		return
	}

	profile, err := p.Exchange(ctx, code, req.CodeVerifier)
	if err != nil {
		h.fail(w, r, "code exchange failed", "err", err)
		return
	}

	user, pair, err := h.Logins.CompleteLogin(ctx, p.Name(), profile)
	if err != nil {
		h.fail(w, r, "login could not be completed", "err", err)
		return
	}

	slogx.FromContext(ctx).Info("login succeeded", "user_id", user.ID, "provider", p.Name())
	h.onSuccess(w, r, req, pair)
}

// onSuccess hands the tokens to the browser. The refresh token only ever
// travels in its HttpOnly cookie; the access token goes in the landing URL.
func (h *LoginHandler) onSuccess(
	w http.ResponseWriter,
	r *http.Request,
	req domain.AuthorizationRequest,
	pair domain.TokenPair,
) {
	cookiex.Set(w, RefreshCookie, pair.RefreshToken, pair.RefreshTTL, h.Cookies)
	h.Cabinet.Remove(w, r)

	httpx.NoCache(w)
	http.Redirect(w, r, withToken(req.LandingURL, pair.AccessToken), http.StatusFound)
}

func (h *LoginHandler) fail(w http.ResponseWriter, r *http.Request, reason string, args ...any) {
	slogx.FromContext(r.Context()).Warn("login failed", append([]any{"reason", reason}, args...)...)
	h.Cabinet.Remove(w, r)

	httpx.NoCache(w)
	http.Redirect(w, r, h.FailureURL, http.StatusFound)
}

// landing returns requested when it is a same-origin path, otherwise the
// configured landing URL.
func (h *LoginHandler) landing(requested string) string {
	if isLocalPath(requested) {
		return requested
	}
	return h.LandingURL
}

func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, `/\`) {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func withToken(landing, token string) string {
	u, err := url.Parse(landing)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set(LandingParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}
