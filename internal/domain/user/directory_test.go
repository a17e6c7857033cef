package user

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/store"
)

func newStore(t *testing.T) *store.SQLStore {
	t.Helper()
	st, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seed(t *testing.T, st store.Store, active, inactive int) {
	t.Helper()
	var rows []store.Row
	for i := 0; i < active+inactive; i++ {
		rows = append(rows, store.Row{
			"id":         fmt.Sprintf("user-%03d", i),
			"email":      fmt.Sprintf("user%d@example.com", i),
			"full_name":  fmt.Sprintf("User %d", i),
			"is_active":  i < active,
			"created_at": time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		})
	}
	_, err := st.InsertMany(context.Background(), store.TableUsers, rows)
	require.NoError(t, err)
}

func TestFindByID(t *testing.T) {
	st := newStore(t)
	seed(t, st, 2, 0)
	dir := NewDirectory(st)

	u, err := dir.FindByID(context.Background(), "user-001")
	require.NoError(t, err)
	assert.Equal(t, "user1@example.com", u.Email)
	assert.Equal(t, "User 1", u.FullName)
	assert.True(t, u.IsActive)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC), u.CreatedAt.UTC())

	_, err = dir.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveIDsPages(t *testing.T) {
	tests := []struct {
		name     string
		active   int
		pageSize int
	}{
		{"empty", 0, 3},
		{"partial page", 2, 3},
		{"exact pages", 6, 3},
		{"several pages", 7, 3},
		{"default page size", 7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore(t)
			seed(t, st, tt.active, 2)

			ids, err := NewDirectory(st).WithPageSize(tt.pageSize).ActiveIDs(context.Background())
			require.NoError(t, err)
			require.Len(t, ids, tt.active)
			for i, id := range ids {
				assert.Equal(t, fmt.Sprintf("user-%03d", i), id)
			}
		})
	}
}

type failingStore struct {
	store.Store
	err error
}

func (f failingStore) Select(context.Context, *store.Query) ([]store.Row, error) { return nil, f.err }
func (f failingStore) Get(context.Context, *store.Query) (store.Row, error)      { return nil, f.err }

func TestDirectoryPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	dir := NewDirectory(failingStore{err: boom})

	_, err := dir.ActiveIDs(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = dir.FindByID(context.Background(), "user-001")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}
