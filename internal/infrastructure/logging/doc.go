// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for log shipping
//   - Development: Colored console output for humans
//
// Components receive a *zap.Logger. The request-id middleware stores a
// request-scoped child logger in the request context; handlers and domain
// code retrieve it with FromContext so every line carries request_id.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	defer logger.Sync()
//	logger.Info("Server starting", zap.String("port", "8000"))
//
//	log := logging.FromContext(ctx, logger.Logger)
//	log.Error("Broadcast aborted", zap.Int("delivered", n), zap.Error(err))
package logging
