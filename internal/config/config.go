package config

import (
	"fmt"
	"os"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"

	"github.com/tabularium/tabularium/internal/credentials"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Client configures the admin CLI and anything else that talks to the Tabularium
// API on behalf of an operator
type Client struct {
	Env               string        `env:"APP_ENV" default:"dev"`
	APIURL            string        `env:"TABULARIUM_API_URL" default:"http://localhost:8080"`
	FrontendURL       string        `env:"TABULARIUM_FRONTEND_URL" default:"http://localhost:5173"`
	CredentialBackend string        `env:"TABULARIUM_CREDENTIAL_BACKEND" default:"file"`
	CredentialsPath   string        `env:"TABULARIUM_CREDENTIALS_PATH"`
	Profile           string        `env:"TABULARIUM_PROFILE" default:"default"`
	RequestTimeout    time.Duration `env:"TABULARIUM_REQUEST_TIMEOUT" default:"10s"`
	RefreshTimeout    time.Duration `env:"TABULARIUM_REFRESH_TIMEOUT" default:"10s"`
	ProbeTimeout      time.Duration `env:"TABULARIUM_PROBE_TIMEOUT" default:"3s"`

	// Only consulted when CredentialBackend is "postgres"
	DatabaseHost     string `env:"PGHOST" default:"localhost"`
	DatabasePort     int    `env:"PGPORT" default:"5432"`
	DatabaseName     string `env:"PGDATABASE" default:"tabularium"`
	DatabaseUser     string `env:"PGUSER"`
	DatabasePassword string `env:"PGPASSWORD"`
	DatabaseSslMode  string `env:"PGSSLMODE"`
}

// Postgres returns the database settings for the postgres credential backend
func (c *Client) Postgres() credentials.PostgresConfig {
	return credentials.PostgresConfig{
		Host:     c.DatabaseHost,
		Port:     c.DatabasePort,
		Name:     c.DatabaseName,
		User:     c.DatabaseUser,
		Password: c.DatabasePassword,
		SslMode:  c.DatabaseSslMode,
	}
}

func (c *Client) validate() error {
	if c.CredentialBackend != BackendFile && c.CredentialBackend != BackendPostgres {
		return fmt.Errorf("TABULARIUM_CREDENTIAL_BACKEND must be '%s' or '%s'; got '%s'", BackendFile, BackendPostgres, c.CredentialBackend)
	}
	if c.CredentialBackend == BackendPostgres && c.DatabaseUser == "" {
		return fmt.Errorf("PGUSER is required when TABULARIUM_CREDENTIAL_BACKEND is '%s'", BackendPostgres)
	}
	return nil
}

// Server configures the development API server
type Server struct {
	Env                string        `env:"APP_ENV" default:"dev"`
	BindAddr           string        `env:"BIND_ADDR"`
	ListenPort         uint16        `env:"LISTEN_PORT" default:"8080"`
	JwtSecret          string        `env:"JWT_SECRET" required:"true"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" default:"168h"`
	CorsAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

func (c *Server) validate() error {
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("ACCESS_TOKEN_TTL (%s) must be shorter than REFRESH_TOKEN_TTL (%s)", c.AccessTokenTTL, c.RefreshTokenTTL)
	}
	return nil
}

// LoadClient reads the client config from the environment, after loading a .env file
// if one is present
func LoadClient() (*Client, error) {
	config := Client{}
	if err := load(&config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadServer reads the server config from the environment, after loading a .env file
// if one is present
func LoadServer() (*Server, error) {
	config := Server{}
	if err := load(&config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func load(config interface{}) error {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	if err := env.Set(config); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	return nil
}
