// Package testutil provides mocks, fixtures and token helpers for backend tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/audit"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/user"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/identity"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

// TestSecret signs tokens minted by SignToken
const TestSecret = "test-secret-with-enough-entropy-0123456789"

// MockVerifier is a mock implementation of identity.Verifier.
type MockVerifier struct {
	mock.Mock
}

// Verify mocks the Verify method.
func (m *MockVerifier) Verify(ctx context.Context, token string) (*identity.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Principal), args.Error(1)
}

// MockUserLookup is a mock user directory.
type MockUserLookup struct {
	mock.Mock
}

// FindByID mocks the FindByID method.
func (m *MockUserLookup) FindByID(ctx context.Context, id string) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

// NewMockVerifier creates a verifier that accepts "valid-token" for the given principal.
func NewMockVerifier(t *testing.T, p *identity.Principal) *MockVerifier {
	t.Helper()
	m := new(MockVerifier)

	m.On("Verify", mock.Anything, "valid-token").Return(p, nil).Maybe()
	m.On("Verify", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: unknown token", identity.ErrInvalidToken)).
		Maybe()

	return m
}

// AuditSink collects audit records in memory.
type AuditSink struct {
	mu      sync.Mutex
	records []audit.Record
}

// Record implements the middleware audit sink.
func (s *AuditSink) Record(rec audit.Record) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

// Records returns a copy of what has been recorded.
func (s *AuditSink) Records() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Record(nil), s.records...)
}

// Claims describes a token minted by SignToken.
type Claims struct {
	Subject      string
	Email        string
	UserMetadata map[string]any
	AppMetadata  map[string]any
	Audience     string
	ExpiresIn    time.Duration
}

// SignToken mints an HS256 access token with TestSecret.
func SignToken(t *testing.T, c Claims) string {
	t.Helper()

	if c.ExpiresIn == 0 {
		c.ExpiresIn = time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": c.Subject,
		"iat": now.Unix(),
		"exp": now.Add(c.ExpiresIn).Unix(),
	}
	if c.Email != "" {
		claims["email"] = c.Email
	}
	if c.UserMetadata != nil {
		claims["user_metadata"] = c.UserMetadata
	}
	if c.AppMetadata != nil {
		claims["app_metadata"] = c.AppMetadata
	}
	if c.Audience != "" {
		claims["aud"] = c.Audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecret))
	require.NoError(t, err)
	return signed
}

// NewStore opens a migrated in-memory store that is closed with the test.
func NewStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedUser inserts one user row.
func SeedUser(t *testing.T, st store.Store, id string, active bool) {
	t.Helper()

	err := st.Insert(context.Background(), store.TableUsers, store.Row{
		"id":         id,
		"email":      id + "@example.com",
		"is_active":  active,
		"created_at": time.Now().UTC(),
	})
	require.NoError(t, err)
}

// SeedUsers inserts n active users named prefix-0000 onwards.
func SeedUsers(t *testing.T, st store.Store, prefix string, n int) {
	t.Helper()

	rows := make([]store.Row, 0, n)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows = append(rows, store.Row{
			"id":         fmt.Sprintf("%s-%04d", prefix, i),
			"email":      fmt.Sprintf("%s-%d@example.com", prefix, i),
			"is_active":  true,
			"created_at": base.Add(time.Duration(i) * time.Second),
		})
	}
	inserted, err := st.InsertMany(context.Background(), store.TableUsers, rows)
	require.NoError(t, err)
	require.Equal(t, int64(n), inserted)
}
