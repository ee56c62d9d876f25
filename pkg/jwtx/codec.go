package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrNoKey      = errors.New("jwtx: signing key is required")
)

// CodecOptions configures a Codec.
type CodecOptions struct {
	// Key is the pre-shared HMAC key. Required.
	Key []byte

	// Issuer is written into every minted token. It is informational; tokens
	// are accepted on signature and expiry alone.
	Issuer string

	// Now overrides the clock, mainly for tests. Defaults to time.Now.
	Now func() time.Time
}

// Codec mints and verifies HS256 tokens under a single symmetric key.
type Codec struct {
	key    []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec returns a Codec for the given options.
func NewCodec(opts CodecOptions) (*Codec, error) {
	if len(opts.Key) == 0 {
		return nil, ErrNoKey
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	key := make([]byte, len(opts.Key))
	copy(key, opts.Key)

	return &Codec{
		key:    key,
		issuer: opts.Issuer,
		now:    now,
		// Expiry is checked by us against c.now so the injected clock is the
		// only clock in play.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}, nil
}

// Issuer returns the issuer written into minted tokens.
func (c *Codec) Issuer() string { return c.issuer }

// Mint signs a token for subject carrying userID, valid for ttl from now.
// A non-positive ttl yields a token that is already expired. Every token gets
// a unique jti, so two tokens minted in the same second still differ.
func (c *Codec) Mint(subject string, userID int64, ttl time.Duration) (string, error) {
	now := c.now()
	claims := NewClaims(subject, userID, ttl, c.issuer, now)
	claims.ID = idx.NewAt(now).String()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify reports whether token carries a valid signature under the
// configured key and has not expired. Every failure cause yields false.
func (c *Codec) Verify(token string) bool {
	_, err := c.Inspect(token)
	return err == nil
}

// Inspect performs the same checks as Verify but returns the failure cause.
// The cause is for logs only; callers must not let it shape a response.
func (c *Codec) Inspect(token string) (Identity, error) {
	claims, err := c.parse(token)
	if err != nil {
		return Identity{}, err
	}
	if err := claims.ValidateExpiry(c.now()); err != nil {
		return Identity{}, err
	}
	return claims.Identity(), nil
}

// Claims decodes the identity carried by token. The signature is checked but
// expiry is not: call Verify first on any security sensitive path. A token
// that does not parse is a caller bug and yields ErrMalformed.
func (c *Codec) Claims(token string) (Identity, error) {
	claims, err := c.parse(token)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity(), nil
}

func (c *Codec) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformed
	}

	parsed, err := c.parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSig
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}
