package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/tabularium/tabularium"
	"github.com/tabularium/tabularium/internal/session"
)

// Ping calls the liveness endpoint, without authentication
func (c *Client) Ping(ctx context.Context) error {
	return c.callPublic(ctx, http.MethodGet, tabularium.PathLiveness, nil, nil)
}

// Login exchanges a username and password for a credential. The caller is
// responsible for establishing the session from the result.
func (c *Client) Login(ctx context.Context, username, password string) (*tabularium.AuthResponse, error) {
	var res tabularium.AuthResponse
	req := tabularium.LoginRequest{Username: username, Password: password}
	if err := c.callPublic(ctx, http.MethodPost, tabularium.PathLogin, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates a new operator account. A successful registration does not log
// anybody in.
func (c *Client) Register(ctx context.Context, username, fullname, password string) error {
	req := tabularium.RegisterRequest{Username: username, Fullname: fullname, Password: password}
	return c.callPublic(ctx, http.MethodPost, tabularium.PathRegister, req, nil)
}

// Me returns the identity that the current access token belongs to
func (c *Client) Me(ctx context.Context) (*tabularium.Identity, error) {
	var identity tabularium.Identity
	if err := c.Call(ctx, http.MethodGet, tabularium.PathMe, nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Exchange trades a refresh token for a new access token. The call is public: it
// never carries the access token that is being replaced.
func (c *Client) Exchange(ctx context.Context, refreshToken string) (*tabularium.AuthResponse, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}
	var res tabularium.AuthResponse
	req := tabularium.RefreshRequest{RefreshToken: refreshToken}
	if err := c.callPublic(ctx, http.MethodPost, tabularium.PathRefresh, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

var _ session.Exchanger = (*Client)(nil)
