package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/api/middleware"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/notification"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/user"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/identity"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/ratelimit"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/testutil"
)

type testAPI struct {
	router *gin.Engine
	store  *store.SQLStore
	audit  *testutil.AuditSink

	alice string
	bob   string
	admin string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWithLimits(t, Limits{
		Read:  &ratelimit.Rule{Window: time.Minute, Max: 100},
		Write: &ratelimit.Rule{Window: time.Minute, Max: 100},
		Admin: &ratelimit.Rule{Window: time.Minute, Max: 100},
	})
}

func newTestAPIWithLimits(t *testing.T, limits Limits) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.UseJSONFieldNames()

	st := testutil.NewStore(t)
	testutil.SeedUser(t, st, "alice", true)
	testutil.SeedUser(t, st, "bob", true)
	testutil.SeedUser(t, st, "admin-1", true)
	testutil.SeedUser(t, st, "dormant", false)

	verifier, err := identity.NewJWTVerifier(identity.JWTConfig{Secret: testutil.TestSecret, Audience: "authenticated"})
	require.NoError(t, err)

	logger := zap.NewNop()
	users := user.NewDirectory(st)
	sink := &testutil.AuditSink{}
	pipeline := middleware.NewPipeline(middleware.PipelineConfig{
		Limiter:       ratelimit.New(ratelimit.Options{}),
		Authenticator: middleware.NewAuthenticator(verifier, users, logger),
		Audit:         sink,
		Logger:        logger,
	})
	handlers := NewHandlers(notification.NewEngine(st, users, logger), notification.NewInbox(st), st, logger)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	Register(router, pipeline, handlers, limits)

	return &testAPI{
		router: router,
		store:  st,
		audit:  sink,
		alice:  testutil.SignToken(t, testutil.Claims{Subject: "alice", Audience: "authenticated"}),
		bob:    testutil.SignToken(t, testutil.Claims{Subject: "bob", Audience: "authenticated"}),
		admin: testutil.SignToken(t, testutil.Claims{
			Subject:     "admin-1",
			Audience:    "authenticated",
			AppMetadata: map[string]any{"role": "admin"},
		}),
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "data missing from %v", body)
	return d
}

func (a *testAPI) send(t *testing.T, to string) string {
	t.Helper()
	w, body := a.do(t, http.MethodPost, "/api/admin/notifications", a.admin, map[string]any{
		"user_id": to,
		"type":    "alert",
		"title":   "M4.8 offshore",
		"message": "Expect light shaking",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sample := data(t, body)["sample"].(map[string]any)
	return sample["id"].(string)
}

func TestRootAndHealth(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, Version, data(t, body)["version"])

	w, body = api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", data(t, body)["status"])

	// Health checks are not audited
	records := api.audit.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "/", records[0].Endpoint)
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(nil, nil, downStore{}, zap.NewNop())

	router := gin.New()
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestMe(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodGet, "/api/me", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, data(t, body)["authenticated"])

	// A bad token on an optional route is treated as anonymous
	w, body = api.do(t, http.MethodGet, "/api/me", "not-a-jwt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, data(t, body)["authenticated"])

	w, body = api.do(t, http.MethodGet, "/api/me", api.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, body)
	assert.Equal(t, true, d["authenticated"])
	assert.Equal(t, true, d["is_admin"])
	assert.Equal(t, "admin-1", d["user"].(map[string]any)["id"])
}

func TestInboxLifecycle(t *testing.T) {
	api := newTestAPI(t)

	first := api.send(t, "alice")
	api.send(t, "alice")
	api.send(t, "bob")

	w, body := api.do(t, http.MethodGet, "/api/notifications", api.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := data(t, body)
	assert.Equal(t, 2.0, page["total"])
	assert.Len(t, page["notifications"], 2)

	w, body = api.do(t, http.MethodGet, "/api/notifications/unread-count", api.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, data(t, body)["count"])

	w, body = api.do(t, http.MethodPut, "/api/notifications/"+first+"/read", api.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, data(t, body)["is_read"])

	w, body = api.do(t, http.MethodGet, "/api/notifications?unread=true", api.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, data(t, body)["total"])

	w, body = api.do(t, http.MethodPut, "/api/notifications/read-all", api.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, data(t, body)["updated"])

	w, _ = api.do(t, http.MethodDelete, "/api/notifications/"+first, api.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = api.do(t, http.MethodGet, "/api/notifications", api.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, data(t, body)["total"])
}

func TestInboxOwnership(t *testing.T) {
	api := newTestAPI(t)
	id := api.send(t, "alice")

	w, body := api.do(t, http.MethodPut, "/api/notifications/"+id+"/read", api.bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can only modify your own notifications", body["error"])

	w, body = api.do(t, http.MethodDelete, "/api/notifications/does-not-exist", api.bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Notification not found", body["error"])

	w, body = api.do(t, http.MethodGet, "/api/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.MessageTokenRequired, body["error"])
}

func TestListValidation(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodGet, "/api/notifications?type=gossip", api.alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, middleware.MessageValidationFailed, body["error"])

	w, _ = api.do(t, http.MethodGet, "/api/notifications?limit=500", api.alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateNotificationBroadcast(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodPost, "/api/admin/notifications", api.admin, map[string]any{
		"broadcast": true,
		"type":      "emergency",
		"title":     "<b>Tsunami warning</b>",
		"message":   "Move to higher ground",
		"priority":  "critical",
		"event_id":  "us7000abcd",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Notification sent to 3 user(s)", body["message"])

	d := data(t, body)
	assert.Equal(t, 3.0, d["count"])
	sample := d["sample"].(map[string]any)
	assert.Equal(t, "Tsunami warning", sample["title"])
	assert.Equal(t, "critical", sample["priority"])

	// The dormant user is not an active recipient
	n, err := api.store.Count(context.Background(), store.From(store.TableNotifications).Eq("user_id", "dormant"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateNotificationValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"no recipients", map[string]any{"type": "alert", "title": "t", "message": "m"}, "user_id"},
		{"both recipients", map[string]any{"user_id": "alice", "broadcast": true, "type": "alert", "title": "t", "message": "m"}, "user_id"},
		{"unknown type", map[string]any{"user_id": "alice", "type": "rumour", "title": "t", "message": "m"}, "type"},
		{"missing title", map[string]any{"user_id": "alice", "type": "alert", "message": "m"}, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := api.do(t, http.MethodPost, "/api/admin/notifications", api.admin, tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, middleware.MessageValidationFailed, body["error"])
			details := body["details"].([]any)
			require.NotEmpty(t, details)
			assert.Equal(t, tt.wantField, details[0].(map[string]any)["field"])
		})
	}
}

func TestCreateNotificationRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodPost, "/api/admin/notifications", api.alice, map[string]any{
		"user_id": "bob", "type": "alert", "title": "t", "message": "m",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, middleware.MessageAdminRequired, body["error"])

	records := api.audit.Records()
	require.Len(t, records, 1)
	assert.Equal(t, http.StatusForbidden, records[0].Status)
	require.NotNil(t, records[0].RequestBody)
	assert.Contains(t, *records[0].RequestBody, `"user_id":"bob"`)
}

func TestAdminRateLimit(t *testing.T) {
	api := newTestAPIWithLimits(t, Limits{Admin: &ratelimit.Rule{Window: time.Minute, Max: 3}})

	for i := 0; i < 3; i++ {
		api.send(t, "alice")
	}

	w, body := api.do(t, http.MethodPost, "/api/admin/notifications", api.admin, map[string]any{
		"user_id": "alice", "type": "alert", "title": "t", "message": "m",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, middleware.MessageRateLimited, body["error"])
	assert.NotNil(t, body["retryAfter"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodGet, "/api/earthquakes", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Route not found", body["error"])

	w, body = api.do(t, http.MethodPatch, "/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method not allowed", body["error"])
}
