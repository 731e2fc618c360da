package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabularium/tabularium"
	"github.com/tabularium/tabularium/internal/credentials"
	"github.com/tabularium/tabularium/internal/session"
)

func Test_Client_Do_refreshAndReplay(t *testing.T) {
	// Scenario: a call is rejected with the old token, the refresh token is exchanged
	// for a new access token, and the call is replayed with it
	api := newFakeAPI("new")
	api.refreshResponses["r1"] = tabularium.AuthResponse{AccessToken: "new"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	sm := session.NewManager(store)
	sm.Subscribe(func(e session.Event) {
		api.record("event:" + string(e.Type) + ":" + e.AccessToken)
	})
	c := New(srv.URL, sm)

	var body map[string]string
	err := c.Call(context.Background(), http.MethodGet, "/api/students", nil, &body)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"token": "new"}, body)

	stored, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, credentials.Credential{AccessToken: "new", RefreshToken: "r1"}, stored)
	assert.Equal(t, []string{
		"GET /api/students Bearer old",
		"POST /auth/refresh r1",
		"event:token-refreshed:new",
		"GET /api/students Bearer new",
	}, api.entries())
	assert.Equal(t, []string{""}, api.refreshAuthHeaders)
}

func Test_Client_Do_noRefreshToken(t *testing.T) {
	api := newFakeAPI("new")
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", DisplayName: "Olga Sidorova"})
	sm := session.NewManager(store)
	events := recordEvents(sm)
	c := New(srv.URL, sm)

	err := c.Call(context.Background(), http.MethodGet, "/api/groups", nil, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, session.ErrRefreshFailed)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))

	stored, _ := store.Get(context.Background())
	assert.True(t, stored.IsEmpty())
	assert.Equal(t, []session.EventType{session.EventForcedLogout}, *events)
	assert.Equal(t, []string{"GET /api/groups Bearer old"}, api.entries())
}

func Test_Client_Do_refreshRejected(t *testing.T) {
	api := newFakeAPI("new")
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "bad", DisplayName: "Olga Sidorova"})
	sm := session.NewManager(store)
	events := recordEvents(sm)
	c := New(srv.URL, sm)

	err := c.Call(context.Background(), http.MethodGet, "/api/grades", nil, nil)
	assert.ErrorIs(t, err, session.ErrRefreshFailed)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	stored, _ := store.Get(context.Background())
	assert.True(t, stored.IsEmpty())
	assert.Equal(t, []session.EventType{session.EventForcedLogout}, *events)
	assert.Equal(t, []string{
		"GET /api/grades Bearer old",
		"POST /auth/refresh bad",
	}, api.entries())
}

func Test_Client_Do_retriesOnlyOnce(t *testing.T) {
	// The server rejects every token, including the renewed one
	api := newFakeAPI("")
	api.refreshResponses["r1"] = tabularium.AuthResponse{AccessToken: "new"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	c := New(srv.URL, session.NewManager(store))

	e, err := NewEnvelope(http.MethodGet, "/api/teachers", nil)
	require.NoError(t, err)
	_, err = c.Do(context.Background(), e)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.True(t, e.Retried())
	assert.Equal(t, []string{
		"GET /api/teachers Bearer old",
		"POST /auth/refresh r1",
		"GET /api/teachers Bearer new",
	}, api.entries())

	// The session survives: the refresh itself succeeded
	stored, _ := store.Get(context.Background())
	assert.Equal(t, "new", stored.AccessToken)
}

func Test_Client_Do_propagatesRenewedToken(t *testing.T) {
	api := newFakeAPI("new")
	api.refreshResponses["r1"] = tabularium.AuthResponse{AccessToken: "new", RefreshToken: "r2", Fullname: "Olga Petrova"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1", DisplayName: "Olga Sidorova"})
	c := New(srv.URL, session.NewManager(store))

	require.NoError(t, c.Call(context.Background(), http.MethodGet, "/api/students", nil, nil))
	require.NoError(t, c.Call(context.Background(), http.MethodGet, "/api/subjects", nil, nil))
	assert.Equal(t, []string{
		"GET /api/students Bearer old",
		"POST /auth/refresh r1",
		"GET /api/students Bearer new",
		"GET /api/subjects Bearer new",
	}, api.entries())

	stored, _ := store.Get(context.Background())
	assert.Equal(t, credentials.Credential{AccessToken: "new", RefreshToken: "r2", DisplayName: "Olga Petrova"}, stored)
}

func Test_Client_Do_noStaleHeaderAfterForcedLogout(t *testing.T) {
	api := newFakeAPI("new")
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "bad"})
	c := New(srv.URL, session.NewManager(store))

	assert.Error(t, c.Call(context.Background(), http.MethodGet, "/api/students", nil, nil))
	err := c.Call(context.Background(), http.MethodGet, "/api/groups", nil, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, []string{
		"GET /api/students Bearer old",
		"POST /auth/refresh bad",
		"GET /api/groups ",
	}, api.entries())
}

func Test_Client_Do_concurrentRejectionsShareOneRefresh(t *testing.T) {
	api := newFakeAPI("new")
	api.refreshResponses["r1"] = tabularium.AuthResponse{AccessToken: "new"}
	api.refreshDelay = 50 * time.Millisecond
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	sm := session.NewManager(store)
	events := recordEvents(sm)
	c := New(srv.URL, sm)

	const numCalls = 6
	errs := make([]error, numCalls)
	var wg sync.WaitGroup
	for i := 0; i < numCalls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Call(context.Background(), http.MethodGet, "/api/students", nil, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, api.count("POST /auth/refresh r1"))
	assert.Equal(t, numCalls, api.count("GET /api/students Bearer new"))
	assert.Equal(t, []session.EventType{session.EventTokenRefreshed}, *events)
}

func Test_Client_Do_passesThroughOtherStatuses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus int
	}{
		{"not found", http.StatusNotFound, http.StatusNotFound},
		{"conflict", http.StatusConflict, http.StatusConflict},
		{"unauthorized is not a refresh trigger", http.StatusUnauthorized, http.StatusUnauthorized},
		{"server error", http.StatusInternalServerError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var refreshed atomic.Bool
			srv := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
				if req.URL.Path == tabularium.PathRefresh {
					refreshed.Store(true)
				}
				http.Error(res, "nope", tt.status)
			}))
			defer srv.Close()

			store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "a", RefreshToken: "r"})
			c := New(srv.URL, session.NewManager(store))
			err := c.Call(context.Background(), http.MethodDelete, "/api/groups/1", nil, nil)
			assert.Equal(t, tt.wantStatus, StatusCode(err))
			assert.ErrorContains(t, err, "nope")
			assert.NotErrorIs(t, err, ErrForbidden)
			assert.False(t, refreshed.Load())

			stored, _ := store.Get(context.Background())
			assert.Equal(t, "a", stored.AccessToken)
		})
	}
}

func Test_Client_Do_publicEnvelopeIsNeverRefreshed(t *testing.T) {
	api := newFakeAPI("new")
	api.refreshResponses["r1"] = tabularium.AuthResponse{AccessToken: "new"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	c := New(srv.URL, session.NewManager(store))

	e, err := NewEnvelope(http.MethodGet, "/api/students", nil)
	require.NoError(t, err)
	e.Public = true
	_, err = c.Do(context.Background(), e)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, e.Retried())
	assert.Equal(t, []string{"GET /api/students "}, api.entries())
}

func Test_Client_Do_timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, session.NewManager(credentials.NewMemoryStore(credentials.Credential{})), WithTimeout(20*time.Millisecond))
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, StatusCode(err))
}

func Test_Client_Do_requestId(t *testing.T) {
	api := newFakeAPI("new")
	api.refreshResponses["r1"] = tabularium.AuthResponse{AccessToken: "new"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := credentials.NewMemoryStore(credentials.Credential{AccessToken: "old", RefreshToken: "r1"})
	c := New(srv.URL, session.NewManager(store))

	e, err := NewEnvelope(http.MethodGet, "/api/students", nil)
	require.NoError(t, err)
	_, err = c.Do(context.Background(), e)
	require.NoError(t, err)

	require.Len(t, api.requestIds, 2)
	assert.NotEmpty(t, api.requestIds[0])
	assert.Equal(t, api.requestIds[0], api.requestIds[1])
	assert.Equal(t, e.RequestId(), api.requestIds[0])
}

func recordEvents(sm *session.Manager) *[]session.EventType {
	var mu sync.Mutex
	recorded := make([]session.EventType, 0)
	sm.Subscribe(func(e session.Event) {
		mu.Lock()
		defer mu.Unlock()
		recorded = append(recorded, e.Type)
	})
	return &recorded
}

// fakeAPI accepts a single access token on every /api and /auth/me route and rejects
// everything else with 403, exchanging refresh tokens from a fixed table
type fakeAPI struct {
	validToken       string
	refreshResponses map[string]tabularium.AuthResponse
	refreshDelay     time.Duration

	mu                 sync.Mutex
	history            []string
	refreshAuthHeaders []string
	requestIds         []string
}

func newFakeAPI(validToken string) *fakeAPI {
	return &fakeAPI{
		validToken:       validToken,
		refreshResponses: make(map[string]tabularium.AuthResponse),
	}
}

func (f *fakeAPI) record(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, entry)
}

func (f *fakeAPI) entries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}

func (f *fakeAPI) count(entry string) int {
	n := 0
	for _, e := range f.entries() {
		if e == entry {
			n++
		}
	}
	return n
}

func (f *fakeAPI) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	if req.URL.Path == tabularium.PathRefresh {
		f.serveRefresh(res, req)
		return
	}

	f.mu.Lock()
	f.requestIds = append(f.requestIds, req.Header.Get(tabularium.RequestIdHeader))
	f.mu.Unlock()
	f.record(req.Method + " " + req.URL.Path + " " + req.Header.Get("Authorization"))

	if f.validToken == "" || req.Header.Get("Authorization") != "Bearer "+f.validToken {
		http.Error(res, "forbidden", http.StatusForbidden)
		return
	}
	res.Header().Set("content-type", "application/json")
	json.NewEncoder(res).Encode(map[string]string{"token": f.validToken})
}

func (f *fakeAPI) serveRefresh(res http.ResponseWriter, req *http.Request) {
	var payload tabularium.RefreshRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.refreshAuthHeaders = append(f.refreshAuthHeaders, req.Header.Get("Authorization"))
	f.mu.Unlock()
	f.record(req.Method + " " + req.URL.Path + " " + payload.RefreshToken)

	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	result, ok := f.refreshResponses[payload.RefreshToken]
	if !ok {
		http.Error(res, "invalid refresh token", http.StatusUnauthorized)
		return
	}
	res.Header().Set("content-type", "application/json")
	json.NewEncoder(res).Encode(result)
}

var _ http.Handler = (*fakeAPI)(nil)

func Test_StatusError(t *testing.T) {
	err := error(&StatusError{Method: "GET", Path: "/auth/me", StatusCode: 403, Message: "token expired"})
	assert.Equal(t, "GET /auth/me: got 403 Forbidden: token expired", err.Error())
	assert.True(t, errors.Is(err, ErrForbidden))

	err = &StatusError{Method: "POST", Path: "/auth/login", StatusCode: 404}
	assert.Equal(t, "POST /auth/login: got 404 Not Found", err.Error())
	assert.False(t, errors.Is(err, ErrForbidden))
}
