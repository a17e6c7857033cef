package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/api/middleware"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/notification"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/logging"
)

// listQuery holds the inbox query parameters
type listQuery struct {
	Page       int    `form:"page" json:"page" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" json:"limit" binding:"omitempty,min=1,max=100"`
	UnreadOnly bool   `form:"unread" json:"unread"`
	Type       string `form:"type" json:"type" binding:"omitempty,oneof=alert emergency news system"`
}

// CreateNotificationRequest is the admin delivery body. Exactly one of
// user_id and broadcast selects the recipients.
type CreateNotificationRequest struct {
	UserID    string         `json:"user_id" binding:"required_without=Broadcast,excluded_with=Broadcast"`
	Broadcast bool           `json:"broadcast"`
	Type      string         `json:"type" binding:"required,oneof=alert emergency news system"`
	Title     string         `json:"title" binding:"required,max=200"`
	Message   string         `json:"message" binding:"required,max=2000"`
	Priority  string         `json:"priority" binding:"omitempty,oneof=low normal high critical"`
	EventID   *string        `json:"event_id" binding:"omitempty,max=128"`
	Metadata  map[string]any `json:"metadata"`
}

// ListNotifications returns the caller's inbox page
func (h *Handlers) ListNotifications(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, err)
		return
	}

	p := middleware.MustIdentity(c)
	page, err := h.inbox.List(c.Request.Context(), p.Subject, notification.ListFilter{
		UnreadOnly: q.UnreadOnly,
		Type:       notification.Type(q.Type),
		Page:       q.Page,
		Limit:      q.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}

	respondData(c, http.StatusOK, page)
}

// UnreadCount returns how many of the caller's notifications are unread
func (h *Handlers) UnreadCount(c *gin.Context) {
	p := middleware.MustIdentity(c)

	n, err := h.inbox.UnreadCount(c.Request.Context(), p.Subject)
	if err != nil {
		fail(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"count": n})
}

// MarkRead marks one notification read
func (h *Handlers) MarkRead(c *gin.Context) {
	p := middleware.MustIdentity(c)

	n, err := h.inbox.MarkRead(c.Request.Context(), p.Subject, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	respondMessage(c, http.StatusOK, "Notification marked as read", n)
}

// MarkAllRead marks every unread notification of the caller read
func (h *Handlers) MarkAllRead(c *gin.Context) {
	p := middleware.MustIdentity(c)

	n, err := h.inbox.MarkAllRead(c.Request.Context(), p.Subject)
	if err != nil {
		fail(c, err)
		return
	}

	respondMessage(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": n})
}

// DeleteNotification removes one of the caller's notifications
func (h *Handlers) DeleteNotification(c *gin.Context) {
	p := middleware.MustIdentity(c)

	if err := h.inbox.Delete(c.Request.Context(), p.Subject, c.Param("id")); err != nil {
		fail(c, err)
		return
	}

	respondMessage(c, http.StatusOK, "Notification deleted", nil)
}

// CreateNotification delivers a notification to one user or to every active user
func (h *Handlers) CreateNotification(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}

	target := notification.ToUser(req.UserID)
	if req.Broadcast {
		target = notification.Broadcast()
	}

	result, err := h.engine.Deliver(c.Request.Context(), notification.Payload{
		Type:     notification.Type(req.Type),
		Title:    req.Title,
		Message:  req.Message,
		Priority: notification.Priority(req.Priority),
		EventID:  req.EventID,
		Metadata: req.Metadata,
	}, target)
	if err != nil {
		fail(c, err)
		return
	}

	logging.FromContext(c.Request.Context(), h.logger).Info("Notification delivered",
		zap.String("target", target.String()),
		zap.String("sender", middleware.MustIdentity(c).Subject),
		zap.Int("count", result.Count))

	respondMessage(c, http.StatusCreated, fmt.Sprintf("Notification sent to %d user(s)", result.Count), result)
}
