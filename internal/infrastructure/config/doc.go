// Package config provides 12-factor configuration for the QuakeAlert API.
//
// Configuration is loaded from environment variables with defaults. A YAML
// file passed with -config is overlaid on top of the environment.
//
// Configuration Sections:
//   - Server: HTTP listener and shutdown timeout
//   - Logging: Log level and output format
//   - RateLimit: Fixed-window policies (read, write, admin) and the global token bucket
//   - CORS: Browser origin allow-list
//   - Identity: Local JWT verification or remote auth service
//   - Database: Data store driver (sqlite, postgres) and DSN
//   - Notification: Broadcast batch size
//   - Audit: Request audit trail
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err == nil {
//		err = cfg.Validate()
//	}
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_ENABLED, RATE_LIMIT_{READ,WRITE,ADMIN}_{WINDOW,MAX}, RATE_LIMIT_RPS, RATE_LIMIT_BURST
//   - CORS_ALLOWED_ORIGINS
//   - IDENTITY_MODE, JWT_SECRET, JWT_ISSUER, JWT_AUDIENCE, AUTH_URL, AUTH_API_KEY, AUTH_TIMEOUT, AUTH_RETRIES
//   - DATABASE_DRIVER, DATABASE_URL, DATABASE_MAX_CONNS, DATABASE_AUTO_MIGRATE
//   - NOTIFICATION_BATCH_SIZE
//   - AUDIT_ENABLED, AUDIT_MAX_BODY_BYTES, AUDIT_WRITE_TIMEOUT
package config
