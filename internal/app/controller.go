package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tabularium/tabularium"
	"github.com/tabularium/tabularium/internal/bootstrap"
	"github.com/tabularium/tabularium/internal/logging"
	"github.com/tabularium/tabularium/internal/session"
)

// State is the in-memory view of the session that the front end renders from
type State struct {
	Initializing  bool
	Authenticated bool
	AccessToken   string
	DisplayName   string
}

// Auth is the subset of the Tabularium client used by the Controller
type Auth interface {
	bootstrap.API
	Login(ctx context.Context, username, password string) (*tabularium.AuthResponse, error)
	Register(ctx context.Context, username, fullname, password string) error
}

// Controller holds application-level session state. It reacts to session events
// published by the refresh machinery, so a forced logout anywhere in the process drops
// it to the anonymous state.
type Controller struct {
	auth    Auth
	session *session.Manager
	prober  *bootstrap.Prober
	logger  *zap.Logger

	mu          sync.RWMutex
	state       State
	unsubscribe func()

	startOnce sync.Once
	started   bootstrap.Result
}

func NewController(auth Auth, sm *session.Manager, prober *bootstrap.Prober, logger *zap.Logger) *Controller {
	c := &Controller{
		auth:    auth,
		session: sm,
		prober:  prober,
		logger:  logging.OrNop(logger),
		state:   State{Initializing: true},
	}
	c.unsubscribe = sm.Subscribe(c.handleEvent)
	return c
}

func (c *Controller) handleEvent(e session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case session.EventForcedLogout:
		c.state = State{}
	case session.EventTokenRefreshed:
		c.state.Authenticated = e.AccessToken != ""
		c.state.AccessToken = e.AccessToken
		if e.DisplayName != "" {
			c.state.DisplayName = e.DisplayName
		}
	}
}

// Start loads the stored credential and probes the backend. Only the first call does
// any work: later calls return the first result and leave the state alone.
func (c *Controller) Start(ctx context.Context) bootstrap.Result {
	c.startOnce.Do(func() {
		c.started = c.start(ctx)
	})
	return c.started
}

func (c *Controller) start(ctx context.Context) bootstrap.Result {
	result := c.prober.Run(ctx)

	cred, err := c.session.Credential(ctx)
	if err != nil {
		c.logger.Error("failed to read stored credential", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
	if result.Authenticated && cred.IsAuthenticated() {
		c.state = State{
			Authenticated: true,
			AccessToken:   cred.AccessToken,
			DisplayName:   cred.DisplayName,
		}
	}
	return result
}

// Login authenticates with a username and password and establishes the session
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	res, err := c.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := c.session.Establish(ctx, res); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{
		Authenticated: true,
		AccessToken:   res.AccessToken,
		DisplayName:   res.Fullname,
	}
	return nil
}

// Register creates an account. The operator must log in separately afterwards.
func (c *Controller) Register(ctx context.Context, username, fullname, password string) error {
	if username == "" || fullname == "" || password == "" {
		return errors.New("username, full name and password are required")
	}
	return c.auth.Register(ctx, username, fullname, password)
}

// Logout ends the session at the operator's request
func (c *Controller) Logout(ctx context.Context) error {
	err := c.session.Logout(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
	return err
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Close stops listening for session events
func (c *Controller) Close() {
	c.unsubscribe()
}

// ShortName returns the first two words of a full name, which is how the operator is
// addressed in the header
func ShortName(fullname string) string {
	words := strings.Fields(fullname)
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}
