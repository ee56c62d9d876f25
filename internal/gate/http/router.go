package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/internal/gate/store"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"

	_ "github.com/aussiebroadwan/tokengate/api/gate" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Limits are the rate limit profiles applied per route group.
type Limits struct {
	Login   httpx.RateLimitConfig
	Refresh httpx.RateLimitConfig
	API     httpx.RateLimitConfig
	Health  httpx.RateLimitConfig
}

// DefaultLimits mirrors the httpx profiles.
func DefaultLimits() Limits {
	return Limits{
		Login:   httpx.StrictLimit,
		Refresh: httpx.ModerateLimit,
		API:     httpx.LenientLimit,
		Health:  httpx.LenientLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Login       *LoginHandler
	Tokens      *TokenHandler
	UserService *service.UserService
	Limits      Limits
}

func NewRouter(
	codec *jwtx.Codec,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       DefaultLimits(),
	}

	// Outermost first: the request logger must exist before anything logs,
	// and identities must be attached before the /api/ guard looks for one.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		slogx.Recover,
		httpx.TokenAuthenticator(codec),
		httpx.ProtectPrefix("/api/", "/api/token"),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerToken()
	r.registerAPI()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			tokengate API
//	@version		0.1.0
//	@description	Stateless authentication bridge. Browsers log in through a third-party OAuth2 provider,
//	@description	receive an HS256 access token and a refresh token cookie, and call the API with the access token alone.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/tokengate
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	// Both legs of the login are strictly limited per IP; each one costs a
	// provider round trip.
	r.Mux.Handle("GET /oauth2/authorization/{provider}",
		httpx.Chain(http.HandlerFunc(r.Login.HandleStart),
			httpx.RateLimitByIP(r.Limits.Login),
		),
	)
	r.Mux.Handle("GET /login/oauth2/code/{provider}",
		httpx.Chain(http.HandlerFunc(r.Login.HandleCallback),
			httpx.RateLimitByIP(r.Limits.Login),
		),
	)
}

func (r *Router) registerToken() {
	r.Mux.Handle("POST /api/token",
		httpx.Chain(http.HandlerFunc(r.Tokens.HandleRefresh),
			httpx.RateLimitByIP(r.Limits.Refresh),
		),
	)
	r.Mux.Handle("DELETE /api/token",
		httpx.Chain(http.HandlerFunc(r.Tokens.HandleLogout),
			httpx.RateLimitByUser(r.Limits.Refresh),
		),
	)
}

func (r *Router) registerAPI() {
	me := &MeHandler{UserService: r.UserService}
	r.Mux.Handle("GET /api/me",
		httpx.Chain(me,
			httpx.RateLimitByUser(r.Limits.API),
		),
	)
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Health),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.codec),
			httpx.RateLimitByIP(r.Limits.Health),
		),
	)
}
