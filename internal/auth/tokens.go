package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidAccessToken  = errors.New("access token is invalid or expired")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid or expired")
)

// Claims are carried in every access token
type Claims struct {
	Fullname string `json:"fullname"`
	jwt.RegisteredClaims
}

// Username returns the subject of the token
func (c *Claims) Username() string {
	return c.Subject
}

type refreshToken struct {
	username  string
	expiresAt time.Time
}

// Issuer mints short-lived HS256 access tokens and long-lived opaque refresh tokens.
// Each user holds at most one refresh token: issuing a new one revokes the old.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clockwork.Clock

	mu             sync.Mutex
	refreshTokens   map[string]refreshToken
	tokenByUsername map[string]string
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration, clock clockwork.Clock) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Issuer{
		secret:          []byte(secret),
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
		clock:           clock,
		refreshTokens:   make(map[string]refreshToken),
		tokenByUsername: make(map[string]string),
	}
}

func (i *Issuer) IssueAccessToken(user *User) (string, error) {
	now := i.clock.Now()
	claims := Claims{
		Fullname: user.Fullname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) ParseAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidAccessToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	return &claims, nil
}

// IssueRefreshToken creates a refresh token for the user, replacing any token that
// they already held
func (i *Issuer) IssueRefreshToken(username string) string {
	token := uuid.NewString()

	i.mu.Lock()
	defer i.mu.Unlock()
	if previous, ok := i.tokenByUsername[username]; ok {
		delete(i.refreshTokens, previous)
	}
	i.refreshTokens[token] = refreshToken{
		username:  username,
		expiresAt: i.clock.Now().Add(i.refreshTTL),
	}
	i.tokenByUsername[username] = token
	return token
}

// ResolveRefreshToken returns the username that a valid refresh token was issued to.
// Expired tokens are discarded.
func (i *Issuer) ResolveRefreshToken(token string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	rt, ok := i.refreshTokens[token]
	if !ok {
		return "", ErrInvalidRefreshToken
	}
	if !i.clock.Now().Before(rt.expiresAt) {
		delete(i.refreshTokens, token)
		delete(i.tokenByUsername, rt.username)
		return "", ErrInvalidRefreshToken
	}
	return rt.username, nil
}

// RevokeRefreshToken discards the refresh token held by a user, if any
func (i *Issuer) RevokeRefreshToken(username string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if token, ok := i.tokenByUsername[username]; ok {
		delete(i.refreshTokens, token)
		delete(i.tokenByUsername, username)
	}
}
