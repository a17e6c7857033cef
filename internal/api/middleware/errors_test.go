package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/apperror"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantCode   string
	}{
		{"application error", apperror.Forbidden("nope"), http.StatusForbidden, "nope", ""},
		{"wrapped application error", fmt.Errorf("handler: %w", apperror.NotFound("gone")), http.StatusNotFound, "gone", ""},
		{"store error with code", &store.Error{Code: "23502", Message: "null value in column \"title\""}, http.StatusBadRequest, "null value in column \"title\"", "23502"},
		{"unique violation", &store.Error{Code: "23505", Message: "duplicate key"}, http.StatusConflict, "Resource already exists", "23505"},
		{"store error without code", &store.Error{Message: "driver gone"}, http.StatusInternalServerError, apperror.MessageInternal, ""},
		{"empty body", io.EOF, http.StatusBadRequest, "Request body is required", ""},
		{"truncated body", io.ErrUnexpectedEOF, http.StatusBadRequest, "Malformed JSON body", ""},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, apperror.MessageInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := Classify(tt.err)

			assert.Equal(t, tt.wantStatus, appErr.Status())
			resp := appErr.Response()
			assert.Equal(t, tt.wantMsg, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

type bindTarget struct {
	Title    string `json:"title" binding:"required"`
	Priority string `json:"priority" binding:"omitempty,oneof=low normal high critical"`
	Count    int    `json:"count"`
}

func bindingRouter() *gin.Engine {
	UseJSONFieldNames()

	router := setupTestRouter()
	router.POST("/test", ErrorHandler(zap.NewNop()), func(c *gin.Context) {
		var body bindTarget
		if err := c.ShouldBindJSON(&body); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true})
	})
	return router
}

func TestErrorHandlerValidation(t *testing.T) {
	router := bindingRouter()

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantError   string
		wantField   string
		wantMessage string
	}{
		{"valid", `{"title":"M5.1 near coast"}`, http.StatusCreated, "", "", ""},
		{"missing title", `{}`, http.StatusBadRequest, MessageValidationFailed, "title", "title is required"},
		{"bad priority", `{"title":"x","priority":"urgent"}`, http.StatusBadRequest, MessageValidationFailed, "priority", "priority must be one of low, normal, high, critical"},
		{"wrong type", `{"title":"x","count":"three"}`, http.StatusBadRequest, MessageValidationFailed, "count", "count must be a int"},
		{"malformed", `{"title":`, http.StatusBadRequest, "Malformed JSON body", "", ""},
		{"empty", ``, http.StatusBadRequest, "Request body is required", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError == "" {
				return
			}
			body := decodeEnvelope(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantField != "" {
				details, ok := body["details"].([]any)
				require.True(t, ok, "details missing")
				require.Len(t, details, 1)
				detail := details[0].(map[string]any)
				assert.Equal(t, tt.wantField, detail["field"])
				assert.Equal(t, tt.wantMessage, detail["message"])
			}
		})
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	router := setupTestRouter()
	router.GET("/test", ErrorHandler(zap.New(core)), func(c *gin.Context) {
		_ = c.Error(errors.New("pq: password authentication failed for user \"admin\""))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.MessageInternal, decodeEnvelope(t, w)["error"])
	assert.NotContains(t, w.Body.String(), "password")

	entries := logs.FilterMessage("Request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	router := setupTestRouter()
	router.GET("/test", ErrorHandler(zap.New(core)), func(c *gin.Context) {
		panic("nil map write")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.MessageInternal, decodeEnvelope(t, w)["error"])
	assert.Equal(t, 1, logs.FilterMessage("Recovered from panic").Len())
}

func TestErrorHandlerKeepsWrittenResponse(t *testing.T) {
	router := setupTestRouter()
	router.GET("/test", ErrorHandler(zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"success": true})
		_ = c.Error(errors.New("late failure"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, decodeEnvelope(t, w)["success"])
}

func TestJSONName(t *testing.T) {
	tests := map[string]string{
		"UserID":    "user_id",
		"Broadcast": "broadcast",
		"EventID":   "event_id",
		"ID":        "id",
	}
	for in, want := range tests {
		assert.Equal(t, want, jsonName(in), in)
	}
}
