package bootstrap

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tabularium/tabularium"
	"github.com/tabularium/tabularium/internal/logging"
	"github.com/tabularium/tabularium/internal/session"
)

// DefaultProbeTimeout bounds the liveness probe
const DefaultProbeTimeout = 3 * time.Second

// API is the subset of the Tabularium client used to probe the backend at startup.
// Me is expected to go through the same refresh handling as every other
// authenticated call.
type API interface {
	Ping(ctx context.Context) error
	Me(ctx context.Context) (*tabularium.Identity, error)
}

// Result describes what was learned at startup
type Result struct {
	// Reachable is true if the liveness probe succeeded
	Reachable bool
	// Authenticated is true if an access token was still stored once probing finished
	Authenticated bool
	// Identity is set if the stored access token was confirmed by the backend
	Identity *tabularium.Identity
	// Err is the failure of the identity probe, if any
	Err error
}

// Prober checks that the backend is up and that any stored credential is still good.
// It runs at most once per process: later calls to Run return the first result.
type Prober struct {
	api          API
	session      *session.Manager
	probeTimeout time.Duration
	logger       *zap.Logger

	once   sync.Once
	result Result
}

func NewProber(api API, sm *session.Manager, probeTimeout time.Duration, logger *zap.Logger) *Prober {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Prober{
		api:          api,
		session:      sm,
		probeTimeout: probeTimeout,
		logger:       logging.OrNop(logger),
	}
}

func (p *Prober) Run(ctx context.Context) Result {
	p.once.Do(func() {
		p.result = p.run(ctx)
	})
	return p.result
}

func (p *Prober) run(ctx context.Context) Result {
	var result Result

	pingCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	err := p.api.Ping(pingCtx)
	cancel()
	result.Reachable = err == nil

	token, tokenErr := p.session.AccessToken(ctx)
	if tokenErr != nil {
		p.logger.Error("failed to read stored credential", zap.Error(tokenErr))
	}
	if err != nil {
		if token == "" {
			// Nothing to be optimistic about: make sure no partial credential survives
			p.logger.Warn("backend is unreachable", zap.Error(err))
			if logoutErr := p.session.Logout(ctx); logoutErr != nil {
				p.logger.Error("failed to clear credential", zap.Error(logoutErr))
			}
			return result
		}
		p.logger.Warn("backend is unreachable; keeping stored credential", zap.Error(err))
	}
	if token == "" {
		return result
	}

	identity, err := p.api.Me(ctx)
	if err != nil {
		p.logger.Warn("failed to confirm stored credential", zap.Error(err))
		result.Err = err
	} else {
		result.Identity = identity
	}

	token, tokenErr = p.session.AccessToken(ctx)
	if tokenErr != nil {
		p.logger.Error("failed to read stored credential", zap.Error(tokenErr))
	}
	result.Authenticated = token != ""
	return result
}
