// Package provider runs the authorization code exchange against a third-party
// OAuth2 identity provider and turns the result into a domain.Profile.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	Google = "google"

	// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	// DefaultHTTPTimeout bounds each call to the provider.
	DefaultHTTPTimeout = 15 * time.Second
)

var (
	ErrConfig   = errors.New("provider: invalid configuration")
	ErrExchange = errors.New("provider: code exchange failed")
	ErrProfile  = errors.New("provider: unusable profile")
)

// DefaultGoogleScopes are requested when none are configured.
var DefaultGoogleScopes = []string{"openid", "email", "profile"}

// Config describes one identity provider. For Google the endpoint URLs may be
// left empty.
type Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string

	// RedirectURL is our callback, registered with the provider.
	RedirectURL string

	// HTTPClient defaults to a client with DefaultHTTPTimeout.
	HTTPClient *http.Client
}

// OAuth2Provider performs the provider side of the login.
type OAuth2Provider struct {
	name        string
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// New validates cfg and returns a provider for it.
func New(cfg Config) (*OAuth2Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		name = Google
	}

	endpoint := oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	userInfoURL := cfg.UserInfoURL
	scopes := cfg.Scopes

	if name == Google {
		if endpoint.AuthURL == "" {
			endpoint.AuthURL = google.Endpoint.AuthURL
		}
		if endpoint.TokenURL == "" {
			endpoint.TokenURL = google.Endpoint.TokenURL
		}
		if userInfoURL == "" {
			userInfoURL = GoogleUserInfoURL
		}
		if len(scopes) == 0 {
			scopes = DefaultGoogleScopes
		}
	}

	switch {
	case cfg.ClientID == "":
		return nil, fmt.Errorf("%w: %s: client id is required", ErrConfig, name)
	case endpoint.AuthURL == "" || endpoint.TokenURL == "" || userInfoURL == "":
		return nil, fmt.Errorf("%w: %s: auth, token and userinfo URLs are required", ErrConfig, name)
	case cfg.RedirectURL == "":
		return nil, fmt.Errorf("%w: %s: redirect URL is required", ErrConfig, name)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &OAuth2Provider{
		name: name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
	}, nil
}

// Name is the registration id used in our login paths.
func (p *OAuth2Provider) Name() string { return p.name }

// Scopes returns the scopes requested at the provider.
func (p *OAuth2Provider) Scopes() []string { return p.oauth.Scopes }

// RedirectURL returns our callback URL for this provider.
func (p *OAuth2Provider) RedirectURL() string { return p.oauth.RedirectURL }

// AuthCodeURL returns the provider's consent URL for state, with a PKCE S256
// challenge derived from verifier.
func (p *OAuth2Provider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// Exchange redeems code and fetches the user's profile with the resulting
// provider token. The provider token itself is discarded.
func (p *OAuth2Provider) Exchange(ctx context.Context, code, verifier string) (domain.Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %w", ErrExchange, err)
	}

	return p.userInfo(ctx, tok)
}

type userInfo struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *OAuth2Provider) userInfo(ctx context.Context, tok *oauth2.Token) (domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return domain.Profile{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("%w: userinfo: %w", ErrProfile, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Profile{}, fmt.Errorf("%w: userinfo status %d: %s", ErrProfile, resp.StatusCode, body)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return domain.Profile{}, fmt.Errorf("%w: decode userinfo: %w", ErrProfile, err)
	}

	email := strings.TrimSpace(info.Email)
	if email == "" {
		return domain.Profile{}, fmt.Errorf("%w: no email", ErrProfile)
	}
	if info.EmailVerified != nil && !*info.EmailVerified {
		return domain.Profile{}, fmt.Errorf("%w: email not verified", ErrProfile)
	}

	return domain.Profile{
		Email:   email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
