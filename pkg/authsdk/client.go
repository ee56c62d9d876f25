package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// Paths served by tokengate.
const (
	PathToken = "/api/token"
	PathMe    = "/api/me"
	PathLivez = "/livez"
	PathReady = "/readyz"
)

// SDKClient talks to a tokengate service.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient returns a client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Refresh exchanges refreshToken for a new access token. An empty
// refreshToken sends no body, relying on a refresh_token cookie carried by
// the HTTP client's jar.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var headers map[string]string
	var body io.Reader
	if refreshToken != "" {
		raw, err := json.Marshal(RefreshRequest{RefreshToken: refreshToken})
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
		headers = map[string]string{"Content-Type": "application/json"}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, PathToken, body, headers)
	if err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := decodeJSON(resp, &tok, http.StatusOK); err != nil {
		return nil, err
	}
	return &tok, nil
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, PathLivez)
}

// GetReadiness checks if the service is ready to serve.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, PathReady)
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// NewSession wraps tokens obtained from a completed login.
func (c *SDKClient) NewSession(accessToken, refreshToken string) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}
