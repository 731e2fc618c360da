package session

import "errors"

// ErrNoRefreshToken is returned by Renew when no refresh token was stored. No
// exchange is attempted and the session is logged out.
var ErrNoRefreshToken = errors.New("no refresh token is stored")

// ErrRefreshFailed is returned by Renew when the refresh exchange was rejected or
// could not be completed. The session is logged out.
var ErrRefreshFailed = errors.New("failed to refresh access token")
