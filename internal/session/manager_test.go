package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabularium/tabularium"
	"github.com/tabularium/tabularium/internal/credentials"
)

func Test_Manager_Renew(t *testing.T) {
	tests := []struct {
		name          string
		stored        credentials.Credential
		stale         string
		exchanger     *mockExchanger
		wantToken     string
		wantErr       error
		wantErrSubstr string
		wantStored    credentials.Credential
		wantEvents    []Event
		wantExchanges []string
	}{
		{
			"successful exchange replaces only the access token when that's all that's returned",
			credentials.Credential{AccessToken: "old", RefreshToken: "r1", DisplayName: "Olga Sidorova"},
			"old",
			&mockExchanger{responses: map[string]*tabularium.AuthResponse{"r1": {AccessToken: "new"}}},
			"new",
			nil,
			"",
			credentials.Credential{AccessToken: "new", RefreshToken: "r1", DisplayName: "Olga Sidorova"},
			[]Event{{Type: EventTokenRefreshed, AccessToken: "new"}},
			[]string{"r1"},
		},
		{
			"rotated refresh token and new display name are persisted",
			credentials.Credential{AccessToken: "old", RefreshToken: "r1", DisplayName: "Olga Sidorova"},
			"old",
			&mockExchanger{responses: map[string]*tabularium.AuthResponse{
				"r1": {AccessToken: "new", RefreshToken: "r2", Fullname: "Olga Petrova"},
			}},
			"new",
			nil,
			"",
			credentials.Credential{AccessToken: "new", RefreshToken: "r2", DisplayName: "Olga Petrova"},
			[]Event{{Type: EventTokenRefreshed, AccessToken: "new", DisplayName: "Olga Petrova"}},
			[]string{"r1"},
		},
		{
			"missing refresh token logs out without attempting an exchange",
			credentials.Credential{AccessToken: "old", DisplayName: "Olga Sidorova"},
			"old",
			&mockExchanger{},
			"",
			ErrNoRefreshToken,
			"",
			credentials.Credential{},
			[]Event{{Type: EventForcedLogout}},
			nil,
		},
		{
			"rejected exchange logs out and surfaces the exchange error",
			credentials.Credential{AccessToken: "old", RefreshToken: "bad"},
			"old",
			&mockExchanger{},
			"",
			ErrRefreshFailed,
			"unknown refresh token 'bad'",
			credentials.Credential{},
			[]Event{{Type: EventForcedLogout}},
			[]string{"bad"},
		},
		{
			"response without an access token counts as a failed exchange",
			credentials.Credential{AccessToken: "old", RefreshToken: "r1"},
			"old",
			&mockExchanger{responses: map[string]*tabularium.AuthResponse{"r1": {RefreshToken: "r2"}}},
			"",
			ErrRefreshFailed,
			"did not include an access token",
			credentials.Credential{},
			[]Event{{Type: EventForcedLogout}},
			[]string{"r1"},
		},
		{
			"token that has already been replaced is reused without an exchange",
			credentials.Credential{AccessToken: "newer", RefreshToken: "r1"},
			"old",
			&mockExchanger{},
			"newer",
			nil,
			"",
			credentials.Credential{AccessToken: "newer", RefreshToken: "r1"},
			nil,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := credentials.NewMemoryStore(tt.stored)
			m := NewManager(store)
			recorded := recordEvents(m)

			token, err := m.Renew(context.Background(), tt.stale, tt.exchanger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.wantErrSubstr != "" {
					assert.ErrorContains(t, err, tt.wantErrSubstr)
				}
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantToken, token)

			stored, err := store.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStored, stored)
			assert.Equal(t, tt.wantEvents, *recorded)
			assert.Equal(t, tt.wantExchanges, tt.exchanger.calls())
		})
	}
}

func Test_Manager_Renew_publishesBeforeReturning(t *testing.T) {
	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	m := NewManager(store)

	// A subscriber observes the new token in the store at the time it's notified
	var seenInStore string
	m.Subscribe(func(e Event) {
		c, _ := store.Get(context.Background())
		seenInStore = c.AccessToken
	})
	ex := &mockExchanger{responses: map[string]*tabularium.AuthResponse{"r1": {AccessToken: "new"}}}
	token, err := m.Renew(context.Background(), "old", ex)
	require.NoError(t, err)
	assert.Equal(t, "new", token)
	assert.Equal(t, "new", seenInStore)
}

func Test_Manager_Renew_singleFlight(t *testing.T) {
	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	m := NewManager(store)
	recorded := recordEvents(m)

	release := make(chan struct{})
	ex := &mockExchanger{
		responses: map[string]*tabularium.AuthResponse{"r1": {AccessToken: "new"}},
		gate:      release,
	}

	const numCallers = 8
	tokens := make([]string, numCallers)
	errs := make([]error, numCallers)
	var wg sync.WaitGroup
	for i := 0; i < numCallers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.Renew(context.Background(), "old", ex)
		}(i)
	}

	// Wait for the exchange to start, give the other callers time to join it, then
	// let it complete
	require.Eventually(t, func() bool { return ex.started.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < numCallers; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, "new", tokens[i])
	}
	assert.Equal(t, []string{"r1"}, ex.calls())
	assert.Equal(t, []Event{{Type: EventTokenRefreshed, AccessToken: "new"}}, *recorded)
}

func Test_Manager_Renew_singleFlightFailure(t *testing.T) {
	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "bad"})
	m := NewManager(store)
	recorded := recordEvents(m)

	release := make(chan struct{})
	ex := &mockExchanger{gate: release}

	const numCallers = 4
	errs := make([]error, numCallers)
	var wg sync.WaitGroup
	for i := 0; i < numCallers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Renew(context.Background(), "old", ex)
		}(i)
	}
	require.Eventually(t, func() bool { return ex.started.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < numCallers; i++ {
		assert.ErrorIs(t, errs[i], ErrRefreshFailed)
	}
	assert.Len(t, ex.calls(), 1)
	assert.Equal(t, []Event{{Type: EventForcedLogout}}, *recorded)
}

func Test_Manager_Renew_callerCancellation(t *testing.T) {
	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	m := NewManager(store)

	release := make(chan struct{})
	ex := &mockExchanger{
		responses: map[string]*tabularium.AuthResponse{"r1": {AccessToken: "new"}},
		gate:      release,
	}

	// The caller gives up, but the exchange it started still completes and is stored
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Renew(ctx, "old", ex)
		done <- err
	}()
	require.Eventually(t, func() bool { return ex.started.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool {
		token, _ := m.AccessToken(context.Background())
		return token == "new"
	}, time.Second, time.Millisecond)
}

func Test_Manager_Renew_timeout(t *testing.T) {
	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	m := NewManager(store, WithRefreshTimeout(10*time.Millisecond))
	recorded := recordEvents(m)

	// An exchange that never answers is cut off and treated as a failure
	ex := &mockExchanger{gate: make(chan struct{})}
	_, err := m.Renew(context.Background(), "old", ex)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	stored, _ := store.Get(context.Background())
	assert.True(t, stored.IsEmpty())
	assert.Equal(t, []Event{{Type: EventForcedLogout}}, *recorded)
}

func Test_Manager_Renew_storeFailure(t *testing.T) {
	m := NewManager(&failingStore{err: fmt.Errorf("disk full")})
	_, err := m.Renew(context.Background(), "old", &mockExchanger{})
	assert.ErrorContains(t, err, "failed to read credential: disk full")
}

func Test_Manager_EstablishAndLogout(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore(credentials.Credential{})
	m := NewManager(store)
	recorded := recordEvents(m)

	err := m.Establish(ctx, &tabularium.AuthResponse{Username: "admin", Fullname: "Admin Adminov", AccessToken: "a1", RefreshToken: "r1"})
	require.NoError(t, err)
	c, err := m.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, credentials.Credential{AccessToken: "a1", RefreshToken: "r1", DisplayName: "Admin Adminov"}, c)

	assert.Error(t, m.Establish(ctx, &tabularium.AuthResponse{RefreshToken: "r2"}))
	assert.Error(t, m.Establish(ctx, nil))

	require.NoError(t, m.Logout(ctx))
	token, err := m.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", token)

	// Operator-initiated logout is not broadcast
	assert.Empty(t, *recorded)
}

func Test_Manager_ForceLogout(t *testing.T) {
	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "a", RefreshToken: "r", DisplayName: "n"})
	m := NewManager(store)
	recorded := recordEvents(m)

	assert.NoError(t, m.ForceLogout(context.Background()))
	stored, _ := store.Get(context.Background())
	assert.True(t, stored.IsEmpty())
	assert.Equal(t, []Event{{Type: EventForcedLogout}}, *recorded)

	// Subscribers hear about the logout even if the store can't be cleared
	failing := NewManager(&failingStore{err: errors.New("read-only")})
	failingRecorded := recordEvents(failing)
	assert.ErrorContains(t, failing.ForceLogout(context.Background()), "read-only")
	assert.Equal(t, []Event{{Type: EventForcedLogout}}, *failingRecorded)
}

func recordEvents(m *Manager) *[]Event {
	var mu sync.Mutex
	var recorded []Event
	m.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		recorded = append(recorded, e)
	})
	return &recorded
}

type mockExchanger struct {
	responses map[string]*tabularium.AuthResponse
	gate      chan struct{}
	started   atomic.Int32

	mu       sync.Mutex
	received []string
}

func (m *mockExchanger) Exchange(ctx context.Context, refreshToken string) (*tabularium.AuthResponse, error) {
	m.mu.Lock()
	m.received = append(m.received, refreshToken)
	m.mu.Unlock()
	m.started.Add(1)

	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	res, ok := m.responses[refreshToken]
	if !ok {
		return nil, fmt.Errorf("unknown refresh token '%s'", refreshToken)
	}
	return res, nil
}

func (m *mockExchanger) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return nil
	}
	return append([]string(nil), m.received...)
}

var _ Exchanger = (*mockExchanger)(nil)

type failingStore struct {
	err error
}

func (s *failingStore) Get(ctx context.Context) (credentials.Credential, error) {
	return credentials.Credential{}, s.err
}

func (s *failingStore) Set(ctx context.Context, c credentials.Credential) error {
	return s.err
}

func (s *failingStore) Clear(ctx context.Context) error {
	return s.err
}

var _ credentials.Store = (*failingStore)(nil)
