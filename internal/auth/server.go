package auth

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tabularium/tabularium/internal/logging"
	"github.com/tabularium/tabularium/internal/metrics"
)

type Server struct {
	users    *Users
	issuer   *Issuer
	observer metrics.AuthObserver
	logger   *zap.Logger
}

func NewServer(users *Users, issuer *Issuer, observer metrics.AuthObserver, logger *zap.Logger) *Server {
	if observer == nil {
		observer = metrics.NoopAuth()
	}
	return &Server{
		users:    users,
		issuer:   issuer,
		observer: observer,
		logger:   logging.OrNop(logger),
	}
}

// RegisterRoutes installs the authentication endpoints on a router mounted at /auth
func (s *Server) RegisterRoutes(r *mux.Router) {
	// Authentication endpoints: allow an operator to create an account, to exchange a
	// username and password for an access token and a refresh token, and to exchange a
	// refresh token for a new access token once the old one expires
	r.Path("/register").Methods("POST").HandlerFunc(s.handleRegister)
	r.Path("/login").Methods("POST").HandlerFunc(s.handleLogin)
	r.Path("/refresh").Methods("POST").HandlerFunc(s.handleRefresh)

	// Identity endpoint: resolves the operator identified by the access token supplied
	// in the Authorization header
	r.Path("/me").Methods("GET").Handler(s.RequireAccess(s.handleMe))
}
