package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tabularium/tabularium/internal/logging"
	"github.com/tabularium/tabularium/internal/metrics"
	"github.com/tabularium/tabularium/internal/session"
)

// DefaultTimeout bounds each attempt to send an envelope
const DefaultTimeout = 10 * time.Second

const maxResponseSize = 4 << 20

// Client sends envelopes to the Tabularium API on behalf of the operator whose
// credential is held by the session manager. Every non-public call is authenticated
// with the stored access token at the time it's sent, and a call rejected with
// tabularium.RefreshStatus is retried once after renewing the access token.
type Client struct {
	baseURL  string
	http     *http.Client
	session  *session.Manager
	timeout  time.Duration
	logger   *zap.Logger
	observer metrics.SessionObserver
}

// Option customizes a Client
type Option func(c *Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(logger)
	}
}

func WithObserver(observer metrics.SessionObserver) Option {
	return func(c *Client) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// New initializes a Client for the API at baseURL, e.g. "http://localhost:8080"
func New(baseURL string, sm *session.Manager, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     &http.Client{},
		session:  sm,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
		observer: metrics.NoopSession(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the root URL of the API that this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session manager whose credential this client uses
func (c *Client) Session() *session.Manager {
	return c.session
}

// Do sends the envelope and returns its response. If a non-public envelope is
// rejected with tabularium.RefreshStatus, the access token is renewed and the
// envelope is replayed exactly once; the outcome of that replay is final.
//
// If no refresh token is available, the session is ended and the original rejection
// is returned. If the refresh exchange fails, the session is ended and the exchange
// error (which matches session.ErrRefreshFailed) is returned instead.
func (c *Client) Do(ctx context.Context, e *Envelope) (*Response, error) {
	if !e.Public && !e.retried {
		if err := c.authenticate(ctx, e); err != nil {
			return nil, err
		}
	}

	res, err := c.send(ctx, e)
	if err == nil || e.Public || e.retried || !errors.Is(err, ErrForbidden) {
		return res, err
	}

	e.retried = true
	token, renewErr := c.session.Renew(ctx, e.accessToken(), c)
	if renewErr != nil {
		if errors.Is(renewErr, session.ErrNoRefreshToken) {
			return nil, err
		}
		return nil, renewErr
	}

	e.setAccessToken(token)
	c.observer.RecordReplay()
	c.logger.Debug("replaying request with renewed access token",
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.String("requestId", e.RequestId()))
	return c.send(ctx, e)
}

// Call is a convenience wrapper around Do for authenticated JSON calls: in is encoded
// as the request body if non-nil, and the response body is decoded into out if
// non-nil
func (c *Client) Call(ctx context.Context, method, path string, in, out interface{}) error {
	e, err := NewEnvelope(method, path, in)
	if err != nil {
		return err
	}
	res, err := c.Do(ctx, e)
	if err != nil {
		return err
	}
	return res.Decode(out)
}

// callPublic is Call for endpoints that must never carry the access token
func (c *Client) callPublic(ctx context.Context, method, path string, in, out interface{}) error {
	e, err := NewEnvelope(method, path, in)
	if err != nil {
		return err
	}
	e.Public = true
	res, err := c.Do(ctx, e)
	if err != nil {
		return err
	}
	return res.Decode(out)
}

// authenticate sets the Authorization header from the store as it is right now
func (c *Client) authenticate(ctx context.Context, e *Envelope) error {
	token, err := c.session.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	e.setAccessToken(token)
	return nil
}

// send makes a single attempt, bounded by the client's timeout
func (c *Client) send(ctx context.Context, e *Envelope) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if len(e.Body) > 0 {
		body = bytes.NewReader(e.Body)
	}
	req, err := http.NewRequestWithContext(ctx, e.Method, c.baseURL+e.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s request: %w", e.Method, e.Path, err)
	}
	for k, v := range e.Header {
		req.Header[k] = append([]string(nil), v...)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", e.Method),
			zap.String("path", e.Path),
			zap.String("requestId", e.RequestId()),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s failed: %w", e.Method, e.Path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", e.Method, e.Path, err)
	}
	c.logger.Debug("request completed",
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.String("requestId", e.RequestId()),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("retried", e.retried))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			Method:     e.Method,
			Path:       e.Path,
			StatusCode: res.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}
	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
	}, nil
}
