// Package cookiex encodes arbitrary values into cookie-safe text and writes
// cookies with the attributes every cookie in this service shares.
package cookiex

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrDecode reports a cookie value that does not decode into the requested type.
var ErrDecode = errors.New("cookiex: cannot decode value")

// Options carries the attributes applied to cookies we write.
type Options struct {
	// Secure restricts the cookie to HTTPS. Off in local development.
	Secure bool

	// SameSite defaults to Lax so the cookie survives top-level redirects
	// back from an identity provider.
	SameSite http.SameSite
}

// Serialize gob-encodes v and returns it as unpadded base64url text.
//
// gob does not tell empty from nil: an empty slice or map field comes back
// from Deserialize as nil. Callers compare such fields by length.
func Serialize(v any) (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return "", fmt.Errorf("cookiex: encode: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Deserialize is the inverse of Serialize.
func Deserialize[T any](value string) (T, error) {
	var out T

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return out, nil
}

// Read returns the named cookie's value, if the request carries it.
func Read(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// Set writes a root-scoped HttpOnly cookie living for maxAge.
func Set(w http.ResponseWriter, name, value string, maxAge time.Duration, opts Options) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: sameSite(opts),
	})
}

// Delete tells the browser to purge the named cookie. Nothing is written if
// the request did not carry it.
func Delete(w http.ResponseWriter, r *http.Request, name string, opts Options) {
	if _, ok := Read(r, name); !ok {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // serialised as Max-Age=0
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: sameSite(opts),
	})
}

func sameSite(opts Options) http.SameSite {
	if opts.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return opts.SameSite
}
