package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tabularium/tabularium"
)

type contextKey int

const claimsKey contextKey = iota

// RequireAccess wraps a handler so that it's only invoked for requests carrying a
// valid access token in the Authorization header. Anything else is rejected with
// tabularium.RefreshStatus, which tells the client to refresh its token.
func (s *Server) RequireAccess(next http.HandlerFunc) http.Handler {
	return s.Middleware(next)
}

// Middleware is RequireAccess in the form of a mux.MiddlewareFunc
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		accessToken := parseAuthorizationHeader(req.Header.Get("authorization"))
		claims, err := s.issuer.ParseAccessToken(accessToken)
		if err != nil {
			s.observer.RecordRejectedAccess()
			s.logger.Debug("rejected access token",
				zap.String("path", req.URL.Path),
				zap.Error(err))
			http.Error(res, "access token is missing, invalid or expired", tabularium.RefreshStatus)
			return
		}
		next.ServeHTTP(res, req.WithContext(context.WithValue(req.Context(), claimsKey, claims)))
	})
}

// GetClaims returns the claims resolved by the access middleware
func GetClaims(req *http.Request) (*Claims, error) {
	claims, ok := req.Context().Value(claimsKey).(*Claims)
	if !ok || claims == nil {
		return nil, errors.New("no access claims in request context")
	}
	return claims, nil
}
