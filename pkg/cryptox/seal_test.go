package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T, secret string) *Sealer {
	t.Helper()
	key, err := DeriveKey([]byte(secret), PurposeCookieSeal)
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)
	return s
}

func TestSealOpen(t *testing.T) {
	s := newTestSealer(t, "secret")

	sealed, err := s.Seal("payload", "cookie-a")
	require.NoError(t, err)
	require.NotContains(t, sealed, "payload")

	plain, err := s.Open(sealed, "cookie-a")
	require.NoError(t, err)
	require.Equal(t, "payload", plain)

	// Fresh nonce every time.
	again, err := s.Seal("payload", "cookie-a")
	require.NoError(t, err)
	require.NotEqual(t, sealed, again)
}

func TestOpenRejects(t *testing.T) {
	s := newTestSealer(t, "secret")
	sealed, err := s.Seal("payload", "cookie-a")
	require.NoError(t, err)

	t.Run("wrong aad", func(t *testing.T) {
		_, err := s.Open(sealed, "cookie-b")
		require.ErrorIs(t, err, ErrUnseal)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := newTestSealer(t, "other-secret")
		_, err := other.Open(sealed, "cookie-a")
		require.ErrorIs(t, err, ErrUnseal)
	})

	t.Run("tampered", func(t *testing.T) {
		b := []byte(sealed)
		if b[len(b)/2] == 'A' {
			b[len(b)/2] = 'B'
		} else {
			b[len(b)/2] = 'A'
		}
		_, err := s.Open(string(b), "cookie-a")
		require.ErrorIs(t, err, ErrUnseal)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := s.Open(sealed[:10], "cookie-a")
		require.ErrorIs(t, err, ErrUnseal)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := s.Open(strings.Repeat("*", 60), "cookie-a")
		require.ErrorIs(t, err, ErrUnseal)
	})
}

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey([]byte("secret"), PurposeTokenSigning)
	require.NoError(t, err)
	require.Len(t, a, KeySize)

	b, err := DeriveKey([]byte("secret"), PurposeTokenSigning)
	require.NoError(t, err)
	require.Equal(t, a, b, "derivation should be deterministic")

	c, err := DeriveKey([]byte("secret"), PurposeCookieSeal)
	require.NoError(t, err)
	require.NotEqual(t, a, c, "purposes should yield independent keys")

	_, err = DeriveKey(nil, PurposeCookieSeal)
	require.Error(t, err)
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)
	require.Len(t, a, KeySize)
	require.NotEqual(t, a, b)
}
