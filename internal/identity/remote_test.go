package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteVerifierResolvesUser(t *testing.T) {
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userPath, r.URL.Path)
		assert.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "u-42",
			"email":         "field@quakealert.app",
			"user_metadata": map[string]any{"role": "admin"},
			"app_metadata":  map[string]any{"provider": "email"},
		})
	})

	v := NewRemoteVerifier(RemoteConfig{BaseURL: srv.URL + "/", APIKey: "anon-key"})
	p, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)

	assert.Equal(t, "u-42", p.Subject)
	assert.Equal(t, "field@quakealert.app", p.Email)
	assert.True(t, p.IsAdmin())
}

func TestRemoteVerifierRejections(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		invalid bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"msg":"invalid JWT"}`, true},
		{"forbidden", http.StatusForbidden, `{"msg":"bad_jwt"}`, true},
		{"empty user", http.StatusOK, `{}`, true},
		{"bad request", http.StatusBadRequest, `{"msg":"malformed"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			v := NewRemoteVerifier(RemoteConfig{BaseURL: srv.URL, APIKey: "anon-key"})
			p, err := v.Verify(context.Background(), "token")
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Equal(t, tt.invalid, errorIsInvalid(err))
		})
	}
}

func TestRemoteVerifierRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u-1"}`))
	})

	v := NewRemoteVerifier(RemoteConfig{BaseURL: srv.URL, Retries: 1})
	p, err := v.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.Subject)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteVerifierOutageIsNotInvalidToken(t *testing.T) {
	srv := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	v := NewRemoteVerifier(RemoteConfig{BaseURL: srv.URL, Timeout: time.Second})
	_, err := v.Verify(context.Background(), "token")
	require.Error(t, err)
	assert.False(t, errorIsInvalid(err))
}

func errorIsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}
