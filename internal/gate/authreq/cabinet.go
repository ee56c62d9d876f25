// Package authreq keeps an in-flight OAuth2 authorization request in a
// sealed browser cookie, since there is no server session to hold it between
// the redirect to the provider and the provider's callback.
package authreq

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/pkg/cookiex"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
)

const (
	// CookieName holds the sealed authorization request.
	CookieName = "oauth2_auth_request"

	// DefaultTTL bounds the whole provider round trip.
	DefaultTTL = 5 * time.Minute
)

// Cabinet stores one authorization request per browser. A second login
// started from the same browser overwrites the first.
type Cabinet struct {
	sealer  *cryptox.Sealer
	ttl     time.Duration
	options cookiex.Options
	now     func() time.Time
}

// NewCabinet returns a Cabinet sealing with sealer. A ttl of zero uses DefaultTTL.
func NewCabinet(sealer *cryptox.Sealer, ttl time.Duration, options cookiex.Options) *Cabinet {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cabinet{
		sealer:  sealer,
		ttl:     ttl,
		options: options,
		now:     time.Now,
	}
}

// Save writes req to the response. A nil req removes any stored request.
func (c *Cabinet) Save(w http.ResponseWriter, r *http.Request, req *domain.AuthorizationRequest) error {
	if req == nil {
		c.Remove(w, r)
		return nil
	}

	// Stored and loaded snapshots agree: no scopes is always nil.
	snap := *req
	if len(snap.Scopes) == 0 {
		snap.Scopes = nil
	}

	encoded, err := cookiex.Serialize(snap)
	if err != nil {
		return err
	}
	sealed, err := c.sealer.Seal(encoded, CookieName)
	if err != nil {
		return err
	}

	cookiex.Set(w, CookieName, sealed, c.ttl, c.options)
	return nil
}

// Load returns the stored request. A missing, tampered, undecodable or stale
// cookie reports false; the caller restarts the login in that case.
func (c *Cabinet) Load(r *http.Request) (domain.AuthorizationRequest, bool) {
	sealed, ok := cookiex.Read(r, CookieName)
	if !ok || sealed == "" {
		return domain.AuthorizationRequest{}, false
	}

	encoded, err := c.sealer.Open(sealed, CookieName)
	if err != nil {
		return domain.AuthorizationRequest{}, false
	}

	req, err := cookiex.Deserialize[domain.AuthorizationRequest](encoded)
	if err != nil {
		return domain.AuthorizationRequest{}, false
	}

	// The cookie's Max-Age already bounds lifetime in the browser; CreatedAt
	// also bounds it against a client that ignores Max-Age.
	if !req.CreatedAt.IsZero() && req.Expired(c.ttl, c.now()) {
		return domain.AuthorizationRequest{}, false
	}

	return req, true
}

// Remove deletes the stored request so it cannot be replayed.
func (c *Cabinet) Remove(w http.ResponseWriter, r *http.Request) {
	cookiex.Delete(w, r, CookieName, c.options)
}
