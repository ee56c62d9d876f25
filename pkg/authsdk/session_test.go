package authsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// fakeGate accepts one current access token and issues "access-N" on refresh.
type fakeGate struct {
	current   atomic.Value
	refreshes atomic.Int32
}

func newFakeGate(t *testing.T) (*fakeGate, *authsdk.SDKClient) {
	g := &fakeGate{}
	g.current.Store("access-0")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != "refresh" {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		n := g.refreshes.Add(1)
		tok := "access-" + string(rune('0'+n))
		g.current.Store(tok)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authsdk.TokenResponse{AccessToken: tok, TokenType: "Bearer", ExpiresIn: 7200})
	})
	mux.HandleFunc("DELETE /api/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+g.current.Load().(string) {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+g.current.Load().(string) {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authsdk.UserResponse{ID: 42, Email: "user@x.com", Role: "ROLE_USER"})
	})
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authsdk.HealthResponse{Status: "ok"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return g, authsdk.NewSDKClient(srv.URL + "/")
}

func TestSessionMe(t *testing.T) {
	ctx := context.Background()
	g, client := newFakeGate(t)

	s := client.NewSession("access-0", "refresh")
	me, err := s.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(42), me.ID)
	require.Equal(t, int32(0), g.refreshes.Load())
}

func TestSessionRefreshesOnUnauthorized(t *testing.T) {
	ctx := context.Background()
	g, client := newFakeGate(t)

	s := client.NewSession("stale", "refresh")
	me, err := s.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "user@x.com", me.Email)
	require.Equal(t, int32(1), g.refreshes.Load())
	require.Equal(t, "access-1", s.AccessToken())
}

func TestSessionBadRefreshToken(t *testing.T) {
	_, client := newFakeGate(t)

	s := client.NewSession("stale", "wrong")
	_, err := s.Me(context.Background())

	var oerr *authsdk.OAuth2Error
	require.True(t, errors.As(err, &oerr))
	require.Equal(t, http.StatusUnauthorized, oerr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeInvalidToken, oerr.Code)
}

func TestSessionLogout(t *testing.T) {
	_, client := newFakeGate(t)
	require.NoError(t, client.NewSession("access-0", "refresh").Logout(context.Background()))
}

func TestGetLiveness(t *testing.T) {
	_, client := newFakeGate(t)
	health, err := client.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	authsdk.ErrInvalidToken.WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")

	var body authsdk.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, authsdk.ErrorCodeInvalidToken, body.Error)
}
