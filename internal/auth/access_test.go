package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Server_Middleware(t *testing.T) {
	s, observer, clock := newTestServer(t)
	user, _ := s.users.Get(MockUsername)
	validToken, err := s.issuer.IssueAccessToken(user)
	require.NoError(t, err)
	clock.Advance(time.Minute)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.Middleware)
	api.Path("/students").Methods("GET").HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		claims, err := GetClaims(req)
		if err != nil {
			http.Error(res, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(res, "hello %s", claims.Username())
	})

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
		wantBody      string
	}{
		{
			"valid access token is accepted",
			"Bearer " + validToken,
			http.StatusOK,
			"hello ivan",
		},
		{
			"missing access token is rejected with 403",
			"",
			http.StatusForbidden,
			"access token is missing, invalid or expired\n",
		},
		{
			"invalid access token is rejected with 403",
			"Bearer not-a-jwt",
			http.StatusForbidden,
			"access token is missing, invalid or expired\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			res := httptest.NewRecorder()
			r.ServeHTTP(res, req)
			assert.Equal(t, tt.wantStatus, res.Code)
			assert.Equal(t, tt.wantBody, res.Body.String())
		})
	}
	assert.Equal(t, 2, observer.rejected)
}

func Test_GetClaims_withoutMiddleware(t *testing.T) {
	_, err := GetClaims(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}
