package slack

import "errors"

var (
	// ErrAuthExpired is returned by API calls rejected because the access
	// token is invalid or expired. The ingestor refreshes once and retries.
	ErrAuthExpired = errors.New("slack access token invalid or expired")

	// ErrRefreshFailed is returned when no access token could be obtained.
	ErrRefreshFailed = errors.New("failed to refresh slack token")

	// ErrMissingCredentials is returned when client ID, secret or refresh
	// token are empty.
	ErrMissingCredentials = errors.New("slack client id, client secret and refresh token are required")
)
