package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/apperror"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

// Paging defaults for List
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListFilter narrows a List call
type ListFilter struct {
	UnreadOnly bool
	Type       Type
	Page       int
	Limit      int
}

// Page is one page of a user's notifications
type Page struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	Page          int             `json:"page"`
	Limit         int             `json:"limit"`
}

// Inbox reads and updates a user's own notifications
type Inbox struct {
	store store.Store
	now   func() time.Time
}

// NewInbox creates a new inbox
func NewInbox(st store.Store) *Inbox {
	return &Inbox{store: st, now: time.Now}
}

// List returns the newest notifications first with an exact total
func (i *Inbox) List(ctx context.Context, userID string, f ListFilter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	f.Limit = min(f.Limit, MaxLimit)

	if f.Type != "" && !f.Type.Valid() {
		return nil, apperror.Validation("Validation failed", apperror.FieldError{
			Field:   "type",
			Message: "type must be one of alert, emergency, news, system",
		})
	}

	filter := func() *store.Query {
		q := store.From(store.TableNotifications).Eq("user_id", userID)
		if f.UnreadOnly {
			q = q.Eq("is_read", false)
		}
		if f.Type != "" {
			q = q.Eq("type", string(f.Type))
		}
		return q
	}

	total, err := i.store.Count(ctx, filter())
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := i.store.Select(ctx, filter().
		OrderBy("created_at", true).
		OrderBy("id", false).
		Range((f.Page-1)*f.Limit, f.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	page := &Page{Notifications: make([]*Notification, 0, len(rows)), Total: total, Page: f.Page, Limit: f.Limit}
	for _, row := range rows {
		n, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		page.Notifications = append(page.Notifications, n)
	}
	return page, nil
}

// UnreadCount returns the number of unread notifications
func (i *Inbox) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := i.store.Count(ctx, store.From(store.TableNotifications).
		Eq("user_id", userID).
		Eq("is_read", false))
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read and returns it
func (i *Inbox) MarkRead(ctx context.Context, userID, id string) (*Notification, error) {
	n, err := i.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}

	readAt := i.now().UTC()
	if _, err := i.store.Update(ctx, store.From(store.TableNotifications).Eq("id", id), store.Row{
		"is_read": true,
		"read_at": readAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}

	n.IsRead = true
	n.ReadAt = &readAt
	return n, nil
}

// MarkAllRead marks every unread notification of the user read
func (i *Inbox) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := i.store.Update(ctx, store.From(store.TableNotifications).
		Eq("user_id", userID).
		Eq("is_read", false), store.Row{
		"is_read": true,
		"read_at": i.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// Delete removes one of the user's notifications
func (i *Inbox) Delete(ctx context.Context, userID, id string) error {
	if _, err := i.owned(ctx, userID, id); err != nil {
		return err
	}
	if _, err := i.store.Delete(ctx, store.From(store.TableNotifications).Eq("id", id)); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// owned loads a notification and checks that userID is its recipient
func (i *Inbox) owned(ctx context.Context, userID, id string) (*Notification, error) {
	row, err := i.store.Get(ctx, store.From(store.TableNotifications).Eq("id", id))
	if errors.Is(err, store.ErrNoRows) {
		return nil, apperror.NotFound("Notification not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}

	n, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, apperror.Forbidden("You can only modify your own notifications")
	}
	return n, nil
}
