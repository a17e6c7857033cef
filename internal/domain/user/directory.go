// Package user reads the user table the identity gate and notification
// fan-out depend on.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

// DefaultPageSize matches the data store's per-call row limit
const DefaultPageSize = 1000

// ErrNotFound is returned when no user has the requested id
var ErrNotFound = errors.New("user not found")

// User is a row of the users table
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory looks users up in the data store
type Directory struct {
	store    store.Store
	pageSize int
	metrics  *monitoring.Metrics
}

// NewDirectory creates a new user directory
func NewDirectory(st store.Store) *Directory {
	return &Directory{store: st, pageSize: DefaultPageSize}
}

// WithPageSize overrides the page size used by ActiveIDs
func (d *Directory) WithPageSize(n int) *Directory {
	if n > 0 {
		d.pageSize = n
	}
	return d
}

// WithMetrics adds dependency call tracking
func (d *Directory) WithMetrics(metrics *monitoring.Metrics) *Directory {
	d.metrics = metrics
	return d
}

// FindByID returns the user with the given id
func (d *Directory) FindByID(ctx context.Context, id string) (*User, error) {
	timer := monitoring.NewTimer(d.metrics, "store", "users.find")
	row, err := d.store.Get(ctx, store.From(store.TableUsers).Eq("id", id))
	if errors.Is(err, store.ErrNoRows) {
		timer.Stop(nil)
		return nil, ErrNotFound
	}
	timer.Stop(err)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", id, err)
	}

	return fromRow(row), nil
}

// ActiveIDs returns the ids of every active user, reading one page at a time
func (d *Directory) ActiveIDs(ctx context.Context) ([]string, error) {
	timer := monitoring.NewTimer(d.metrics, "store", "users.active")

	var ids []string
	for offset := 0; ; offset += d.pageSize {
		rows, err := d.store.Select(ctx, store.From(store.TableUsers).
			Select("id").
			Eq("is_active", true).
			OrderBy("id", false).
			Range(offset, d.pageSize))
		if err != nil {
			timer.Stop(err)
			return nil, fmt.Errorf("failed to list active users: %w", err)
		}

		for _, row := range rows {
			ids = append(ids, row.String("id"))
		}
		if len(rows) < d.pageSize {
			break
		}
	}

	timer.Stop(nil)
	return ids, nil
}

func fromRow(row store.Row) *User {
	return &User{
		ID:        row.String("id"),
		Email:     row.String("email"),
		FullName:  row.String("full_name"),
		IsActive:  row.Bool("is_active"),
		CreatedAt: row.Time("created_at"),
	}
}
