package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newCodec(t *testing.T, now func() time.Time) *jwtx.Codec {
	t.Helper()
	c, err := jwtx.NewCodec(jwtx.CodecOptions{Key: testKey, Issuer: "tokengate-test", Now: now})
	require.NoError(t, err)
	return c
}

func TestNewCodecRequiresKey(t *testing.T) {
	_, err := jwtx.NewCodec(jwtx.CodecOptions{})
	require.ErrorIs(t, err, jwtx.ErrNoKey)
}

func TestMintVerifyClaims(t *testing.T) {
	c := newCodec(t, nil)

	// Fresh access token round trips subject and identity.
	token, err := c.Mint("user@x.com", 42, 14*24*time.Hour)
	require.NoError(t, err)
	require.True(t, c.Verify(token))

	id, err := c.Claims(token)
	require.NoError(t, err)
	require.Equal(t, jwtx.Identity{Subject: "user@x.com", UserID: 42}, id)

	id, err = c.Inspect(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), id.UserID)
}

func TestMintWritesRegisteredClaims(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := newCodec(t, func() time.Time { return now })

	token, err := c.Mint("user@x.com", 7, time.Hour)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwtx.Claims{})
	require.NoError(t, err)
	require.Equal(t, "JWT", parsed.Header["typ"])
	require.Equal(t, "HS256", parsed.Header["alg"])

	claims := parsed.Claims.(*jwtx.Claims)
	require.Equal(t, "tokengate-test", claims.Issuer)
	require.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	require.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	require.NotEmpty(t, claims.ID)

	again, err := c.Mint("user@x.com", 7, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, token, again)
}

func TestVerifyExpired(t *testing.T) {
	c := newCodec(t, nil)

	t.Run("negative ttl", func(t *testing.T) {
		token, err := c.Mint("user@x.com", 1, -time.Second)
		require.NoError(t, err)
		require.False(t, c.Verify(token))

		_, err = c.Inspect(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("zero ttl", func(t *testing.T) {
		token, err := c.Mint("user@x.com", 1, 0)
		require.NoError(t, err)
		require.False(t, c.Verify(token))
	})

	t.Run("sub-second ttl", func(t *testing.T) {
		// exp is whole seconds; a clock part way through a second must not
		// swallow a short ttl.
		now := time.Date(2025, 1, 1, 12, 0, 0, 700*int(time.Millisecond), time.UTC)
		c := newCodec(t, func() time.Time { return now })

		for _, ttl := range []time.Duration{time.Millisecond, 200 * time.Millisecond, 999 * time.Millisecond} {
			token, err := c.Mint("user@x.com", 42, ttl)
			require.NoError(t, err)
			require.True(t, c.Verify(token), "ttl %s", ttl)

			_, err = c.Inspect(token)
			require.NoError(t, err, "ttl %s", ttl)
		}

		token, err := c.Mint("user@x.com", 42, -time.Millisecond)
		require.NoError(t, err)
		require.False(t, c.Verify(token))
	})

	t.Run("clock moves past expiry", func(t *testing.T) {
		now := time.Now()
		clock := func() time.Time { return now }
		c := newCodec(t, func() time.Time { return clock() })

		token, err := c.Mint("user@x.com", 1, time.Minute)
		require.NoError(t, err)
		require.True(t, c.Verify(token))

		clock = func() time.Time { return now.Add(2 * time.Minute) }
		require.False(t, c.Verify(token))

		// Claims still decodes an expired token; expiry is Verify's job.
		id, err := c.Claims(token)
		require.NoError(t, err)
		require.Equal(t, int64(1), id.UserID)
	})
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	c := newCodec(t, nil)
	other, err := jwtx.NewCodec(jwtx.CodecOptions{Key: []byte("another-key-entirely-another-key")})
	require.NoError(t, err)

	token, err := other.Mint("user@x.com", 42, time.Hour)
	require.NoError(t, err)

	require.False(t, c.Verify(token))
	_, err = c.Inspect(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	_, err = c.Claims(token)
	require.Error(t, err)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	c := newCodec(t, nil)
	claims := jwtx.NewClaims("user@x.com", 42, time.Hour, "", time.Now())

	t.Run("none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		require.False(t, c.Verify(token))
	})

	t.Run("HS512 with same key", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testKey)
		require.NoError(t, err)
		require.False(t, c.Verify(token))
	})
}

func TestVerifyMalformed(t *testing.T) {
	c := newCodec(t, nil)

	for _, in := range []string{"", "abc", "a.b.c", "....", "Bearer x.y.z"} {
		require.False(t, c.Verify(in), "input %q", in)
		_, err := c.Claims(in)
		require.ErrorIs(t, err, jwtx.ErrMalformed, "input %q", in)
	}
}

func TestVerifyTamperSensitivity(t *testing.T) {
	c := newCodec(t, nil)

	token, err := c.Mint("user@x.com", 42, time.Hour)
	require.NoError(t, err)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for i := range len(token) {
		if token[i] == '.' {
			continue
		}

		// Replace with the next alphabet character so the result stays
		// inside the base64url alphabet.
		idx := strings.IndexByte(alphabet, token[i])
		require.GreaterOrEqual(t, idx, 0)
		repl := alphabet[(idx+1)%len(alphabet)]

		tampered := token[:i] + string(repl) + token[i+1:]
		require.False(t, c.Verify(tampered), "flip at %d still verified", i)
	}
}
