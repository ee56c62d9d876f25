package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Purpose labels for keys derived from the service secret. Each purpose gets
// an independent key so a leak of one cannot be replayed against the other.
const (
	PurposeTokenSigning = "tokengate/jwt-hs256"
	PurposeCookieSeal   = "tokengate/cookie-seal"
)

// KeySize is the length in bytes of every derived key.
const KeySize = 32

// DeriveKey expands secret into a KeySize key bound to purpose.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("cryptox: empty secret")
	}

	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("cryptox: derive %s: %w", purpose, err)
	}
	return key, nil
}

// GenerateSecret returns random secret material. Used when no secret is
// configured, in which case nothing minted survives a restart.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, KeySize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("cryptox: generate secret: %w", err)
	}
	return secret, nil
}
