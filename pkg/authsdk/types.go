package authsdk

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RefreshRequest is the optional JSON body of POST /api/token. Browsers send
// the refresh token as a cookie instead.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by POST /api/token.
type TokenResponse struct {
	// AccessToken is the new JWT access token.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expiresIn"`
}

// UserResponse is returned by GET /api/me.
type UserResponse struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Role    string `json:"role"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime,omitempty"`
	Version string `json:"version,omitempty"`

	// Checks is only set by /readyz.
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each critical dependency.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}
