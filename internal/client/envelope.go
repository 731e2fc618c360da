package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tabularium/tabularium"
)

// Envelope describes an outgoing API call. An Envelope is created per call and may
// be sent at most twice: once, and once more after a successful token refresh.
type Envelope struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte

	// Public envelopes are never authenticated and never trigger a token refresh
	Public bool

	retried bool
}

// NewEnvelope prepares a call to the given path, encoding body as JSON unless it is
// nil
func NewEnvelope(method, path string, body interface{}) (*Envelope, error) {
	e := &Envelope{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
	e.Header.Set(tabularium.RequestIdHeader, uuid.NewString())
	e.Header.Set("Accept", "application/json")
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		e.Body = data
		e.Header.Set("Content-Type", "application/json")
	}
	return e, nil
}

// Retried reports whether the envelope has already been replayed after a refresh
func (e *Envelope) Retried() bool {
	return e.retried
}

// RequestId returns the identifier sent in tabularium.RequestIdHeader
func (e *Envelope) RequestId() string {
	return e.Header.Get(tabularium.RequestIdHeader)
}

func (e *Envelope) setAccessToken(token string) {
	if token == "" {
		e.Header.Del("Authorization")
		return
	}
	e.Header.Set("Authorization", "Bearer "+token)
}

func (e *Envelope) accessToken() string {
	return strings.TrimPrefix(e.Header.Get("Authorization"), "Bearer ")
}
