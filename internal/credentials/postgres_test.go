package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_PostgresStore(t *testing.T) {
	ctx := context.Background()
	q := &mockQueries{rows: make(map[string]Credential)}
	s := &PostgresStore{q: q, profile: "front-desk"}

	// No row for the profile reads as an anonymous session
	c, err := s.Get(ctx)
	assert.NoError(t, err)
	assert.True(t, c.IsEmpty())

	assert.NoError(t, s.Set(ctx, Credential{AccessToken: "a", RefreshToken: "r", DisplayName: "n"}))
	assert.Equal(t, Credential{AccessToken: "a", RefreshToken: "r", DisplayName: "n"}, q.rows["front-desk"])

	c, err = s.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "a", c.AccessToken)

	// Other profiles are untouched
	q.rows["registrar"] = Credential{AccessToken: "x"}
	assert.NoError(t, s.Clear(ctx))
	_, ok := q.rows["front-desk"]
	assert.False(t, ok)
	assert.Equal(t, "x", q.rows["registrar"].AccessToken)

	// Storing an empty credential is a clear
	q.rows["front-desk"] = Credential{AccessToken: "stale"}
	assert.NoError(t, s.Set(ctx, Credential{}))
	_, ok = q.rows["front-desk"]
	assert.False(t, ok)
}

func Test_PostgresStore_errors(t *testing.T) {
	s := &PostgresStore{q: &mockQueries{err: fmt.Errorf("mock error")}, profile: "front-desk"}

	_, err := s.Get(context.Background())
	assert.ErrorContains(t, err, "failed to load credential for profile 'front-desk': mock error")
	err = s.Set(context.Background(), Credential{AccessToken: "a"})
	assert.ErrorContains(t, err, "mock error")
	err = s.Clear(context.Background())
	assert.ErrorContains(t, err, "mock error")
}

type mockQueries struct {
	rows map[string]Credential
	err  error
}

func (m *mockQueries) GetCredential(ctx context.Context, profile string) (Credential, error) {
	if m.err != nil {
		return Credential{}, m.err
	}
	c, ok := m.rows[profile]
	if !ok {
		return Credential{}, sql.ErrNoRows
	}
	return c, nil
}

func (m *mockQueries) UpsertCredential(ctx context.Context, profile string, c Credential) error {
	if m.err != nil {
		return m.err
	}
	m.rows[profile] = c
	return nil
}

func (m *mockQueries) DeleteCredential(ctx context.Context, profile string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.rows, profile)
	return nil
}

var _ Queries = (*mockQueries)(nil)
