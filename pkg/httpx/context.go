package httpx

import "context"

// RoleUser is the single role granted to every authenticated caller.
const RoleUser = "ROLE_USER"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	Subject string
	UserID  int64
	Role    string
}

type ctxKey struct{}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the caller identity, if the request carried a
// valid access token.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
