package service

import "errors"

var (
	// ErrInvalidRefresh covers every way a refresh token can fail: bad
	// signature, expiry, no stored record, or a record for a different token.
	ErrInvalidRefresh = errors.New("invalid_refresh_token")

	// ErrUserResolution means the provider profile could not be mapped to an
	// account.
	ErrUserResolution = errors.New("user_resolution_failed")
)
