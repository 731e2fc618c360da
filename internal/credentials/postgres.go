package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golden-vcr/server-common/db"
	_ "github.com/lib/pq"
)

// PostgresConfig identifies the database that holds shared operator profiles
type PostgresConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SslMode  string
}

// Queries is the subset of SQL operations that PostgresStore needs
type Queries interface {
	GetCredential(ctx context.Context, profile string) (Credential, error)
	UpsertCredential(ctx context.Context, profile string, c Credential) error
	DeleteCredential(ctx context.Context, profile string) error
}

// PostgresStore keeps one credential row per named profile. It suits workstations
// whose operators share state through a database rather than a home directory.
type PostgresStore struct {
	q       Queries
	profile string
}

// OpenPostgres connects to the configured database and verifies the connection
func OpenPostgres(ctx context.Context, config PostgresConfig) (*sql.DB, error) {
	connectionString := db.FormatConnectionString(
		config.Host,
		config.Port,
		config.Name,
		config.User,
		config.Password,
		config.SslMode,
	)
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return conn, nil
}

// NewPostgresStore returns a store for the given profile backed by conn
func NewPostgresStore(conn *sql.DB, profile string) *PostgresStore {
	return &PostgresStore{
		q:       &sqlQueries{db: conn},
		profile: profile,
	}
}

func (s *PostgresStore) Get(ctx context.Context) (Credential, error) {
	c, err := s.q.GetCredential(ctx, s.profile)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, nil
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credential for profile '%s': %w", s.profile, err)
	}
	return c, nil
}

func (s *PostgresStore) Set(ctx context.Context, c Credential) error {
	if c.IsEmpty() {
		return s.Clear(ctx)
	}
	if err := s.q.UpsertCredential(ctx, s.profile, c); err != nil {
		return fmt.Errorf("failed to store credential for profile '%s': %w", s.profile, err)
	}
	return nil
}

// Clear deletes the profile's row in a single statement
func (s *PostgresStore) Clear(ctx context.Context) error {
	if err := s.q.DeleteCredential(ctx, s.profile); err != nil {
		return fmt.Errorf("failed to clear credential for profile '%s': %w", s.profile, err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)

type sqlQueries struct {
	db *sql.DB
}

const getCredential = `
SELECT access_token, refresh_token, fullname
	FROM tabularium.credential
	WHERE profile = $1
`

func (q *sqlQueries) GetCredential(ctx context.Context, profile string) (Credential, error) {
	var c Credential
	row := q.db.QueryRowContext(ctx, getCredential, profile)
	err := row.Scan(&c.AccessToken, &c.RefreshToken, &c.DisplayName)
	return c, err
}

const upsertCredential = `
INSERT INTO tabularium.credential (profile, access_token, refresh_token, fullname, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (profile) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = excluded.refresh_token,
		fullname = excluded.fullname,
		updated_at = excluded.updated_at
`

func (q *sqlQueries) UpsertCredential(ctx context.Context, profile string, c Credential) error {
	_, err := q.db.ExecContext(ctx, upsertCredential, profile, c.AccessToken, c.RefreshToken, c.DisplayName)
	return err
}

const deleteCredential = `
DELETE FROM tabularium.credential WHERE profile = $1
`

func (q *sqlQueries) DeleteCredential(ctx context.Context, profile string) error {
	_, err := q.db.ExecContext(ctx, deleteCredential, profile)
	return err
}

var _ Queries = (*sqlQueries)(nil)
