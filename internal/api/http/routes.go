package http

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/api/middleware"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/ratelimit"
)

// Limits holds the fixed-window rule of each rate policy. A nil rule
// disables limiting for that policy.
type Limits struct {
	Read  *ratelimit.Rule
	Write *ratelimit.Rule
	Admin *ratelimit.Rule
}

// Register mounts every API route on router
func Register(router *gin.Engine, pipeline *middleware.Pipeline, h *Handlers, limits Limits) {
	public := middleware.Policy{Name: "public"}
	health := middleware.Policy{Name: "health", SkipAudit: true}
	optional := middleware.Policy{Name: "read", Limit: limits.Read, Auth: middleware.AuthOptional}
	read := middleware.Policy{Name: "read", Limit: limits.Read, Auth: middleware.AuthRequired}
	write := middleware.Policy{Name: "write", Limit: limits.Write, Auth: middleware.AuthRequired}
	admin := middleware.Policy{Name: "admin", Limit: limits.Admin, Auth: middleware.AuthAdmin}

	router.GET("/", pipeline.Wrap(public, h.Root)...)
	router.GET("/health", pipeline.Wrap(health, h.Health)...)

	api := router.Group("/api")
	api.GET("/me", pipeline.Wrap(optional, h.Me)...)

	notifications := api.Group("/notifications")
	notifications.GET("", pipeline.Wrap(read, h.ListNotifications)...)
	notifications.GET("/unread-count", pipeline.Wrap(read, h.UnreadCount)...)
	notifications.PUT("/read-all", pipeline.Wrap(write, h.MarkAllRead)...)
	notifications.PUT("/:id/read", pipeline.Wrap(write, h.MarkRead)...)
	notifications.DELETE("/:id", pipeline.Wrap(write, h.DeleteNotification)...)

	api.POST("/admin/notifications", pipeline.Wrap(admin, h.CreateNotification)...)

	router.NoRoute(NoRoute)
	router.NoMethod(NoMethod)
}
