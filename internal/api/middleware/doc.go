// Package middleware provides the request pipeline for the QuakeAlert API.
//
// Global middleware (installed once on the router):
//   - CORS: allow-list origin echo, preflight short-circuit with 200
//   - RequestID: X-Request-ID propagation and a request-scoped logger
//   - GlobalRateLimit: process-wide token bucket in front of everything
//
// Per-route chain built by Pipeline.Wrap, outermost first:
//
//	Audit -> ErrorHandler -> RateLimit -> Auth -> handler
//
// Audit wraps everything so it sees the final status and body. ErrorHandler
// renders any error a later stage attached with c.Error, and recovers panics.
// RateLimit and Auth short-circuit by attaching an *apperror.Error and
// aborting; handlers return errors the same way.
//
// Identity modes:
//   - AuthRequired: 401 unless a valid bearer token is present
//   - AuthOptional: attaches identity when possible, never blocks
//   - AuthAdmin: AuthRequired plus a user lookup and an admin role claim
//
// Example Usage:
//
//	p := middleware.NewPipeline(middleware.PipelineConfig{...})
//	api.GET("/notifications", p.Wrap(middleware.Policy{
//		Name:  "read",
//		Limit: &readRule,
//		Auth:  middleware.AuthRequired,
//	}, handlers.ListNotifications)...)
package middleware
