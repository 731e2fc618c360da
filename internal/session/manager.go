package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tabularium/tabularium"
	"github.com/tabularium/tabularium/internal/credentials"
	"github.com/tabularium/tabularium/internal/events"
	"github.com/tabularium/tabularium/internal/logging"
	"github.com/tabularium/tabularium/internal/metrics"
)

// DefaultRefreshTimeout bounds a refresh exchange when no other timeout is configured
const DefaultRefreshTimeout = 10 * time.Second

// renewKey is the single-flight key shared by every concurrent Renew call
const renewKey = "renew"

// Exchanger trades a refresh token for a new access token. Implementations must not
// authenticate the exchange call with the (presumably expired) access token.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (*tabularium.AuthResponse, error)
}

// Manager owns the operator's credential and the bus on which changes to it are
// announced. A single Manager is constructed per application and handed to the HTTP
// client and to whatever holds the UI state.
type Manager struct {
	store          credentials.Store
	bus            events.Bus[Event]
	group          singleflight.Group
	logger         *zap.Logger
	observer       metrics.SessionObserver
	refreshTimeout time.Duration
}

// Option customizes a Manager
type Option func(m *Manager)

// WithLogger sets the logger used to report session transitions
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.OrNop(logger)
	}
}

// WithObserver sets the observer that records refresh and logout metrics
func WithObserver(observer metrics.SessionObserver) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observer = observer
		}
	}
}

// WithRefreshTimeout bounds each refresh exchange. A timeout is handled exactly like a
// rejected exchange.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.refreshTimeout = timeout
		}
	}
}

// NewManager initializes a Manager that persists the credential in store
func NewManager(store credentials.Store, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		logger:         zap.NewNop(),
		observer:       metrics.NoopSession(),
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Credential returns the currently-stored credential
func (m *Manager) Credential(ctx context.Context) (credentials.Credential, error) {
	return m.store.Get(ctx)
}

// AccessToken returns the currently-stored access token, or an empty string if the
// session is anonymous
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	c, err := m.store.Get(ctx)
	if err != nil {
		return "", err
	}
	return c.AccessToken, nil
}

// Subscribe registers a handler for session events and returns a function that
// removes it
func (m *Manager) Subscribe(handler events.Handler[Event]) func() {
	return m.bus.Subscribe(handler)
}

// Establish stores the credential issued by a successful login
func (m *Manager) Establish(ctx context.Context, res *tabularium.AuthResponse) error {
	if res == nil || res.AccessToken == "" {
		return errors.New("login response did not include an access token")
	}
	err := m.store.Set(ctx, credentials.Credential{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		DisplayName:  res.Fullname,
	})
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	m.logger.Info("session established", zap.String("fullname", res.Fullname))
	return nil
}

// Logout clears the credential at the operator's request. No event is published:
// the caller initiated the transition and already knows about it.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	m.logger.Info("session ended")
	return nil
}

// ForceLogout clears the credential and tells every subscriber that the session is
// over. Subscribers are notified even if clearing the store failed.
func (m *Manager) ForceLogout(ctx context.Context) error {
	err := m.store.Clear(ctx)
	if err != nil {
		m.logger.Error("failed to clear credential during forced logout", zap.Error(err))
		err = fmt.Errorf("failed to clear credential: %w", err)
	}
	m.observer.RecordForcedLogout()
	m.logger.Warn("session could not be renewed; logged out")
	m.bus.Publish(Event{Type: EventForcedLogout})
	return err
}

// Renew obtains a replacement for staleAccessToken, the access token that a request
// was rejected with. Concurrent callers share a single exchange and all receive the
// same token or the same error. If the stored token has already moved on from
// staleAccessToken, it is returned without an exchange.
//
// The exchange is detached from the cancellation of ctx so that one caller giving up
// does not fail the exchange for everyone else; it is bounded by the refresh timeout
// instead.
func (m *Manager) Renew(ctx context.Context, staleAccessToken string, ex Exchanger) (string, error) {
	ch := m.group.DoChan(renewKey, func() (interface{}, error) {
		return m.renew(context.WithoutCancel(ctx), staleAccessToken, ex)
	})
	select {
	case result := <-ch:
		if result.Err != nil {
			return "", result.Err
		}
		return result.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) renew(ctx context.Context, staleAccessToken string, ex Exchanger) (string, error) {
	current, err := m.store.Get(ctx)
	if err != nil {
		m.observer.RecordRefresh(metrics.RefreshStoreFailure)
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	if current.AccessToken != "" && current.AccessToken != staleAccessToken {
		m.observer.RecordRefresh(metrics.RefreshReused)
		return current.AccessToken, nil
	}

	if current.RefreshToken == "" {
		m.observer.RecordRefresh(metrics.RefreshNoToken)
		m.ForceLogout(ctx)
		return "", ErrNoRefreshToken
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()
	res, err := ex.Exchange(exchangeCtx, current.RefreshToken)
	if err == nil && (res == nil || res.AccessToken == "") {
		err = errors.New("refresh response did not include an access token")
	}
	if err != nil {
		m.logger.Warn("refresh exchange failed", zap.Error(err))
		m.observer.RecordRefresh(metrics.RefreshRejected)
		m.ForceLogout(ctx)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	next := current.Merge(credentials.Credential{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		DisplayName:  res.Fullname,
	})
	if err := m.store.Set(ctx, next); err != nil {
		m.observer.RecordRefresh(metrics.RefreshStoreFailure)
		return "", fmt.Errorf("failed to store refreshed credential: %w", err)
	}
	m.observer.RecordRefresh(metrics.RefreshRenewed)
	m.logger.Info("access token refreshed",
		zap.Bool("rotatedRefreshToken", res.RefreshToken != ""),
		zap.Bool("updatedFullname", res.Fullname != ""))

	m.bus.Publish(Event{
		Type:        EventTokenRefreshed,
		AccessToken: next.AccessToken,
		DisplayName: res.Fullname,
	})
	return next.AccessToken, nil
}
