package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tabularium/tabularium"
)

// ErrForbidden is matched by a StatusError carrying the status that the backend uses
// to reject a missing, invalid or expired access token
var ErrForbidden = errors.New("access token was rejected")

// StatusError is returned for any response whose status is not 2xx
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	text := http.StatusText(e.StatusCode)
	if e.Message != "" {
		return fmt.Sprintf("%s %s: got %d %s: %s", e.Method, e.Path, e.StatusCode, text, e.Message)
	}
	return fmt.Sprintf("%s %s: got %d %s", e.Method, e.Path, e.StatusCode, text)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == tabularium.RefreshStatus {
		return ErrForbidden
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or 0 if err did not come from a
// non-2xx response
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
