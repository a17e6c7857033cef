// Package http provides the HTTP handlers of the QuakeAlert API.
//
// Handlers assume the middleware pipeline has already run: identity is
// attached by the auth stage, and failures are reported with c.Error so the
// error handler renders one envelope for every route.
//
// Endpoints:
//   - Health: / and /health
//   - Identity: /api/me
//   - Inbox: /api/notifications, /api/notifications/unread-count,
//     /api/notifications/:id/read, /api/notifications/read-all,
//     /api/notifications/:id
//   - Admin: /api/admin/notifications
//
// Example Usage:
//
//	handlers := http.NewHandlers(engine, inbox, st, logger)
//	router.GET("/health", pipeline.Wrap(healthPolicy, handlers.Health)...)
//	router.POST("/api/admin/notifications", pipeline.Wrap(adminPolicy, handlers.CreateNotification)...)
package http
