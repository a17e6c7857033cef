// Package audit persists one record per completed API request.
//
// Writes are best effort: Record returns immediately, the insert runs in the
// background with its own timeout, and failures are logged and counted but
// never retried. A circuit breaker sheds writes while the data store keeps
// failing so slow inserts cannot pile up behind live traffic.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/id"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

// Record is the audit trail entry for one request
type Record struct {
	Endpoint     string
	Method       string
	UserID       *string
	IPAddress    string
	UserAgent    string
	RequestBody  *string
	Status       int
	Duration     time.Duration
	ErrorMessage *string
	CreatedAt    time.Time
}

// Row converts the record to an api_logs row
func (r Record) Row(auditID id.AuditID) store.Row {
	return store.Row{
		"id":              auditID.String(),
		"endpoint":        r.Endpoint,
		"method":          r.Method,
		"user_id":         r.UserID,
		"ip_address":      r.IPAddress,
		"user_agent":      r.UserAgent,
		"request_body":    r.RequestBody,
		"response_status": r.Status,
		"duration_ms":     r.Duration.Milliseconds(),
		"error_message":   r.ErrorMessage,
		"created_at":      r.CreatedAt.UTC(),
	}
}

// Options configures a Recorder
type Options struct {
	WriteTimeout time.Duration
	Breaker      resilience.Settings
	Metrics      *monitoring.Metrics
}

// Recorder writes audit records asynchronously
type Recorder struct {
	store   store.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics
	breaker *resilience.Breaker
	timeout time.Duration

	wg sync.WaitGroup
}

// NewRecorder creates a new recorder writing to st
func NewRecorder(st store.Store, logger *zap.Logger, opts Options) *Recorder {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	settings := opts.Breaker
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("Audit writer breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		}
	}

	return &Recorder{
		store:   st,
		logger:  logger,
		metrics: opts.Metrics,
		breaker: resilience.New("audit", settings),
		timeout: opts.WriteTimeout,
	}
}

// Record schedules rec for persistence and returns immediately
func (r *Recorder) Record(rec Record) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.write(rec)
	}()
}

func (r *Recorder) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	auditID := id.NewAuditID()
	err := r.breaker.Do(ctx, func(ctx context.Context) error {
		return r.store.Insert(ctx, store.TableAPILogs, rec.Row(auditID))
	})

	switch {
	case err == nil:
		r.metrics.RecordAuditWrite("written")
	case errors.Is(err, resilience.ErrOpen), errors.Is(err, resilience.ErrTrialLimit):
		r.metrics.RecordAuditWrite("shed")
		r.logger.Debug("Audit write shed", zap.String("endpoint", rec.Endpoint), zap.Error(err))
	default:
		r.metrics.RecordAuditWrite("failed")
		r.logger.Warn("Audit write failed",
			zap.String("audit_id", auditID.String()),
			zap.String("method", rec.Method),
			zap.String("endpoint", rec.Endpoint),
			zap.Int("status", rec.Status),
			zap.Error(err))
	}
}

// Flush waits for in-flight writes or for ctx to end
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BreakerState reports the state of the write breaker
func (r *Recorder) BreakerState() resilience.State {
	return r.breaker.State()
}
