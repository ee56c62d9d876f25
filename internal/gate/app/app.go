package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/authreq"
	httpapi "github.com/aussiebroadwan/tokengate/internal/gate/http"
	"github.com/aussiebroadwan/tokengate/internal/gate/provider"
	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/internal/gate/store"
	"github.com/aussiebroadwan/tokengate/internal/gate/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokengate/pkg/cookiex"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gate service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db   store.Store
	keys *Keys

	provider            *provider.OAuth2Provider
	tokenService        *service.TokenService
	userService         *service.UserService
	loginService        *service.LoginService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokengate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	keys, err := InitKeys(app.cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keys: %w", err)
	}
	app.keys = keys

	app.provider, err = provider.New(provider.Config{
		Name:         cfg.OAuth2Provider,
		ClientID:     cfg.OAuth2ClientID,
		ClientSecret: cfg.OAuth2ClientSecret,
		AuthURL:      cfg.OAuth2AuthURL,
		TokenURL:     cfg.OAuth2TokenURL,
		UserInfoURL:  cfg.OAuth2UserInfoURL,
		Scopes:       cfg.OAuth2Scopes,
		RedirectURL:  cfg.CallbackURL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure identity provider: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("tokengate starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"provider", app.provider.Name(),
		"callback", app.provider.RedirectURL(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tokengate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("tokengate stopped")
	return nil
}

// initDatabase opens the database and applies migrations.
func (app *Application) initDatabase() error {
	dsn := app.cfg.DatabaseFile
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	}

	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Codec:      app.keys.Codec,
		Store:      app.db,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
		Rotate:     app.cfg.RefreshRotation,
	}
	app.userService = &service.UserService{Store: app.db}
	app.loginService = &service.LoginService{
		Store:  app.db,
		Users:  app.userService,
		Tokens: app.tokenService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	cookies := cookiex.Options{Secure: app.cfg.CookieSecure}

	router := httpapi.NewRouter(app.keys.Codec, BuildVersion, app.db, app.logger)
	router.Login = &httpapi.LoginHandler{
		Providers:  map[string]httpapi.Provider{app.provider.Name(): app.provider},
		Cabinet:    authreq.NewCabinet(app.keys.Sealer, authreq.DefaultTTL, cookies),
		Logins:     app.loginService,
		Cookies:    cookies,
		LandingURL: app.cfg.LandingURL,
		FailureURL: app.cfg.FailureURL,
	}
	router.Tokens = &httpapi.TokenHandler{
		Tokens:  app.tokenService,
		Cookies: cookies,
	}
	router.UserService = app.userService
	router.Limits = httpapi.Limits{
		Login:   app.cfg.LoginLimit,
		Refresh: app.cfg.RefreshLimit,
		API:     app.cfg.APILimit,
		Health:  httpapi.DefaultLimits().Health,
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
