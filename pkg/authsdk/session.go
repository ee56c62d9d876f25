package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Session carries the tokens of one logged in user.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

// AccessToken returns the current access token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Me returns the authenticated user.
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	resp, err := s.do(ctx, http.MethodGet, PathMe)
	if err != nil {
		return nil, err
	}

	var me UserResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// Logout revokes the session's refresh token on the server.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodDelete, PathToken)
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()
	return nil
}

// Refresh replaces the access token using the refresh token.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	tok, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.accessToken = tok.AccessToken
	return nil
}

// do sends an authenticated bodyless request. A 401 triggers one refresh and
// one retry with the new access token.
func (s *Session) do(ctx context.Context, method, path string) (*http.Response, error) {
	token := s.AccessToken()

	resp, err := s.send(ctx, method, path, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	_ = resp.Body.Close()

	s.mu.Lock()
	// Another caller may have refreshed while we were waiting.
	if s.accessToken == token {
		if err := s.refreshLocked(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	token = s.accessToken
	s.mu.Unlock()

	return s.send(ctx, method, path, token)
}

func (s *Session) send(ctx context.Context, method, path, token string) (*http.Response, error) {
	return s.client.doRequest(ctx, method, path, nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
}
