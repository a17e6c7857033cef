// Package main is the entry point for the QuakeAlert API server.
//
// The server sits between the earthquake-alert web client and the hosted
// database-and-auth platform. It verifies bearer tokens, rate limits and
// audits every request, and fans admin notifications out to active users.
//
// Configuration:
//   - Environment variables (12-factor), optionally seeded from a .env file (-env)
//   - Optional YAML file (-config), applied over the environment
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	JWT_SECRET=... DATABASE_DRIVER=postgres DATABASE_URL=postgres://... ./server
//
//	# Development mode (console logs, debug level, local SQLite)
//	JWT_SECRET=dev-secret ./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown (drain requests, flush audit writes)
package main
