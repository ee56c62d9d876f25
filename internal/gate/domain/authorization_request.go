package domain

import "time"

// AuthorizationRequest is the state of an OAuth2 login between the redirect
// to the provider and the provider's callback. It lives only in a cookie.
type AuthorizationRequest struct {
	Provider     string
	Scopes       []string
	State        string // anti-forgery value echoed back by the provider
	RedirectURI  string // our callback URL registered with the provider
	CodeVerifier string // PKCE verifier for the code exchange
	LandingURL   string // where the browser goes once tokens are issued
	CreatedAt    time.Time
}

// Expired reports whether the request is older than ttl at now.
func (a AuthorizationRequest) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(a.CreatedAt) > ttl
}
