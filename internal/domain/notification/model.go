package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

// Type classifies a notification
type Type string

const (
	TypeAlert     Type = "alert"
	TypeEmergency Type = "emergency"
	TypeNews      Type = "news"
	TypeSystem    Type = "system"
)

// Types lists every notification type
var Types = []Type{TypeAlert, TypeEmergency, TypeNews, TypeSystem}

// Valid reports whether t is a known type
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Priority orders notifications for display
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Notification is one persisted per-recipient notification
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Priority  Priority       `json:"priority"`
	EventID   *string        `json:"event_id"`
	Metadata  map[string]any `json:"metadata"`
	IsRead    bool           `json:"is_read"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at"`
}

func (n *Notification) row() store.Row {
	return store.Row{
		"id":         n.ID,
		"user_id":    n.UserID,
		"type":       string(n.Type),
		"title":      n.Title,
		"message":    n.Message,
		"priority":   string(n.Priority),
		"event_id":   n.EventID,
		"metadata":   n.Metadata,
		"is_read":    n.IsRead,
		"read_at":    n.ReadAt,
		"created_at": n.CreatedAt,
	}
}

func fromRow(row store.Row) (*Notification, error) {
	n := &Notification{
		ID:        row.String("id"),
		UserID:    row.String("user_id"),
		Type:      Type(row.String("type")),
		Title:     row.String("title"),
		Message:   row.String("message"),
		Priority:  Priority(row.String("priority")),
		EventID:   row.NullString("event_id"),
		IsRead:    row.Bool("is_read"),
		CreatedAt: row.Time("created_at"),
	}
	if row["read_at"] != nil {
		readAt := row.Time("read_at")
		n.ReadAt = &readAt
	}
	if err := row.JSON("metadata", &n.Metadata); err != nil {
		return nil, fmt.Errorf("notification %s has malformed metadata: %w", n.ID, err)
	}
	return n, nil
}

// Payload is the content shared by every record of one delivery
type Payload struct {
	Type     Type
	Title    string
	Message  string
	Priority Priority
	EventID  *string
	Metadata map[string]any
}

// Target selects the recipients of a delivery
type Target struct {
	UserID    string
	broadcast bool
}

// ToUser targets a single user
func ToUser(userID string) Target {
	return Target{UserID: strings.TrimSpace(userID)}
}

// Broadcast targets every active user
func Broadcast() Target {
	return Target{broadcast: true}
}

// IsBroadcast reports whether the target is every active user
func (t Target) IsBroadcast() bool {
	return t.broadcast
}

// String describes the target for logs and metrics
func (t Target) String() string {
	if t.broadcast {
		return "broadcast"
	}
	return "user"
}

// Result summarises a delivery
type Result struct {
	Count  int           `json:"count"`
	Sample *Notification `json:"sample,omitempty"`
}

// PartialDeliveryError reports a broadcast aborted by a failing batch
type PartialDeliveryError struct {
	Delivered int
	Total     int
	Err       error
}

// Error implements the error interface
func (e *PartialDeliveryError) Error() string {
	return fmt.Sprintf("broadcast aborted after %d of %d notifications: %v", e.Delivered, e.Total, e.Err)
}

// Unwrap exposes the failing insert
func (e *PartialDeliveryError) Unwrap() error {
	return e.Err
}
