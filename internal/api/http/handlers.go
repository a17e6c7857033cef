package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/api/middleware"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/notification"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/apperror"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

const healthTimeout = 2 * time.Second

// Pinger checks connectivity to a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	engine *notification.Engine
	inbox  *notification.Inbox
	store  Pinger
	logger *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(engine *notification.Engine, inbox *notification.Inbox, store Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		inbox:  inbox,
		store:  store,
		logger: logger,
	}
}

// Root reports the service name and version
func (h *Handlers) Root(c *gin.Context) {
	respondData(c, http.StatusOK, gin.H{
		"status":  "online",
		"service": "QuakeAlert API",
		"version": Version,
	})
}

// Health checks the data store
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logging.FromContext(c.Request.Context(), h.logger).Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, apperror.Response{Error: "Database unavailable"})
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"time":     time.Now().UTC(),
	})
}

// Me reports the caller's identity, or that the caller is anonymous
func (h *Handlers) Me(c *gin.Context) {
	p, ok := middleware.Identity(c)
	if !ok {
		respondData(c, http.StatusOK, gin.H{"authenticated": false})
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"authenticated": true,
		"user":          p,
		"is_admin":      p.IsAdmin(),
	})
}
