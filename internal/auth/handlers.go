package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tabularium/tabularium"
)

func (s *Server) handleRegister(res http.ResponseWriter, req *http.Request) {
	var payload tabularium.RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := ValidateRegistration(payload.Username, payload.Fullname, payload.Password); err != nil {
		s.observer.RecordRegistration(false)
		http.Error(res, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := s.users.Register(payload.Username, payload.Fullname, payload.Password)
	if err != nil {
		s.observer.RecordRegistration(false)
		if errors.Is(err, ErrUserExists) {
			http.Error(res, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.observer.RecordRegistration(true)
	s.logger.Info("registered user", zap.String("username", user.Username))

	// Registration doesn't log the new user in: they must call /auth/login next
	writeJSON(res, tabularium.AuthResponse{Username: user.Username, Fullname: user.Fullname})
}

func (s *Server) handleLogin(res http.ResponseWriter, req *http.Request) {
	var payload tabularium.LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Username == "" || payload.Password == "" {
		http.Error(res, "username and password are required", http.StatusBadRequest)
		return
	}

	user, err := s.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		s.observer.RecordLogin(false)
		http.Error(res, err.Error(), http.StatusNotFound)
		return
	}
	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		s.observer.RecordLogin(false)
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.observer.RecordLogin(true)
	s.logger.Info("user logged in", zap.String("username", user.Username))

	writeJSON(res, tabularium.AuthResponse{
		Username:     user.Username,
		Fullname:     user.Fullname,
		AccessToken:  accessToken,
		RefreshToken: s.issuer.IssueRefreshToken(user.Username),
	})
}

func (s *Server) handleRefresh(res http.ResponseWriter, req *http.Request) {
	var payload tabularium.RefreshRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.RefreshToken == "" {
		http.Error(res, "refreshToken is required", http.StatusBadRequest)
		return
	}

	username, err := s.issuer.ResolveRefreshToken(payload.RefreshToken)
	if err != nil {
		s.observer.RecordRefresh(false)
		http.Error(res, err.Error(), http.StatusUnauthorized)
		return
	}
	user, ok := s.users.Get(username)
	if !ok {
		s.observer.RecordRefresh(false)
		s.issuer.RevokeRefreshToken(username)
		http.Error(res, ErrInvalidRefreshToken.Error(), http.StatusUnauthorized)
		return
	}
	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		s.observer.RecordRefresh(false)
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.observer.RecordRefresh(true)

	// The refresh token is not rotated: the same token is echoed back
	writeJSON(res, tabularium.AuthResponse{
		Username:     user.Username,
		Fullname:     user.Fullname,
		AccessToken:  accessToken,
		RefreshToken: payload.RefreshToken,
	})
}

func (s *Server) handleMe(res http.ResponseWriter, req *http.Request) {
	claims, err := GetClaims(req)
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(res, tabularium.Identity{
		Username: claims.Username(),
		Fullname: claims.Fullname,
	})
}

func writeJSON(res http.ResponseWriter, v interface{}) {
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(v); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}
