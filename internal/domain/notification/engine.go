package notification

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/apperror"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

// MaxBatchSize is the data store's per-call row limit for multi-row inserts
const MaxBatchSize = 1000

// ActiveUsers resolves the recipients of a broadcast
type ActiveUsers interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// Engine fans notification payloads out to their recipients
type Engine struct {
	store     store.Store
	users     ActiveUsers
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	sanitizer *bluemonday.Policy
	batchSize int
	now       func() time.Time
}

// NewEngine creates a new fan-out engine
func NewEngine(st store.Store, users ActiveUsers, logger *zap.Logger) *Engine {
	return &Engine{
		store:     st,
		users:     users,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
		batchSize: MaxBatchSize,
		now:       time.Now,
	}
}

// WithBatchSize sets the broadcast chunk size, capped at MaxBatchSize
func (e *Engine) WithBatchSize(n int) *Engine {
	if n > 0 && n <= MaxBatchSize {
		e.batchSize = n
	}
	return e
}

// WithMetrics adds delivery tracking
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// Deliver inserts the payload for its target and reports how many rows were
// created. Any data store failure is Fatal.
func (e *Engine) Deliver(ctx context.Context, p Payload, target Target) (*Result, error) {
	p, err := e.normalize(p)
	if err != nil {
		return nil, err
	}

	if !target.IsBroadcast() {
		if target.UserID == "" {
			return nil, apperror.Validation("Validation failed", apperror.FieldError{
				Field:   "user_id",
				Message: "user_id or broadcast is required",
			})
		}
		return e.deliverOne(ctx, p, target.UserID)
	}
	return e.broadcast(ctx, p)
}

func (e *Engine) deliverOne(ctx context.Context, p Payload, userID string) (*Result, error) {
	n := e.build(p, userID, e.now().UTC())
	if err := e.store.Insert(ctx, store.TableNotifications, n.row()); err != nil {
		return nil, apperror.Fatal(fmt.Errorf("failed to insert notification: %w", err))
	}

	e.metrics.RecordNotifications("user", 1)
	return &Result{Count: 1, Sample: n}, nil
}

func (e *Engine) broadcast(ctx context.Context, p Payload) (*Result, error) {
	log := logging.FromContext(ctx, e.logger)

	ids, err := e.users.ActiveIDs(ctx)
	if err != nil {
		return nil, apperror.Fatal(fmt.Errorf("failed to resolve active users: %w", err))
	}
	if len(ids) == 0 {
		return &Result{}, nil
	}

	createdAt := e.now().UTC()
	records := make([]*Notification, len(ids))
	for i, userID := range ids {
		records[i] = e.build(p, userID, createdAt)
	}

	delivered := 0
	for start := 0; start < len(records); start += e.batchSize {
		end := min(start+e.batchSize, len(records))

		rows := make([]store.Row, 0, end-start)
		for _, n := range records[start:end] {
			rows = append(rows, n.row())
		}

		inserted, err := e.store.InsertMany(ctx, store.TableNotifications, rows)
		if err != nil {
			e.metrics.RecordNotificationBatch("failed")
			e.metrics.RecordNotifications("broadcast", delivered)
			log.Error("Broadcast aborted",
				zap.Int("delivered", delivered),
				zap.Int("recipients", len(records)),
				zap.Int("batch_start", start),
				zap.Error(err))
			return nil, apperror.Fatal(&PartialDeliveryError{Delivered: delivered, Total: len(records), Err: err})
		}

		e.metrics.RecordNotificationBatch("success")
		delivered += int(inserted)
	}

	e.metrics.RecordNotifications("broadcast", delivered)
	log.Info("Broadcast delivered",
		zap.Int("delivered", delivered),
		zap.String("type", string(p.Type)),
		zap.String("priority", string(p.Priority)))

	return &Result{Count: delivered, Sample: records[0]}, nil
}

func (e *Engine) build(p Payload, userID string, createdAt time.Time) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		Priority:  p.Priority,
		EventID:   p.EventID,
		Metadata:  p.Metadata,
		CreatedAt: createdAt,
	}
}

// normalize sanitizes text, applies the default priority and checks enums
func (e *Engine) normalize(p Payload) (Payload, error) {
	p.Title = e.plainText(p.Title)
	p.Message = e.plainText(p.Message)
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}
	if p.EventID != nil && strings.TrimSpace(*p.EventID) == "" {
		p.EventID = nil
	}

	var details []apperror.FieldError
	if !p.Type.Valid() {
		details = append(details, apperror.FieldError{Field: "type", Message: "type must be one of alert, emergency, news, system"})
	}
	if p.Title == "" {
		details = append(details, apperror.FieldError{Field: "title", Message: "title is required"})
	}
	if p.Message == "" {
		details = append(details, apperror.FieldError{Field: "message", Message: "message is required"})
	}
	if !p.Priority.Valid() {
		details = append(details, apperror.FieldError{Field: "priority", Message: "priority must be one of low, normal, high, critical"})
	}
	if len(details) > 0 {
		return p, apperror.Validation("Validation failed", details...)
	}
	return p, nil
}

// plainText strips markup but keeps the text as written. The sanitizer
// entity-encodes what it leaves behind and clients read JSON, not HTML.
func (e *Engine) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(e.sanitizer.Sanitize(s)))
}
