// Package store provides the Data Store capability used by the backend.
//
// The store exposes table-oriented primitives modelled on the hosted
// platform's query API: filtered select with equality, range and
// set-membership filters, ordering, offset/limit and exact counts, plus
// single and multi-row inserts, update-by-filter and delete-by-filter.
// A missing row is reported as ErrNoRows; driver failures carrying a
// database error code are reported as *Error.
//
// Queries are issued through gorm on one of two dialects:
//   - postgres: the hosted platform database, via gorm's pgx driver
//   - sqlite:   local development and tests, on the modernc.org/sqlite driver
//
// Example Usage:
//
//	rows, err := st.Select(ctx, store.From("notifications").
//	    Eq("user_id", userID).
//	    OrderBy("created_at", true).
//	    Range(0, 20))
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoRows is returned by Get when no row matches
var ErrNoRows = errors.New("store: no rows found")

// Store is the Data Store capability
type Store interface {
	Select(ctx context.Context, q *Query) ([]Row, error)
	Get(ctx context.Context, q *Query) (Row, error)
	Count(ctx context.Context, q *Query) (int64, error)
	Insert(ctx context.Context, table string, row Row) error
	InsertMany(ctx context.Context, table string, rows []Row) (int64, error)
	Update(ctx context.Context, q *Query, values Row) (int64, error)
	Delete(ctx context.Context, q *Query) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Op is a filter comparison operator
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "<>"
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpIn  Op = "IN"
)

// Filter restricts rows by one column
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Order sorts results by one column
type Order struct {
	Column string
	Desc   bool
}

// Query describes a filtered read, count, update or delete
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Orders  []Order
	Offset  int
	Limit   int
}

// From starts a query against table
func From(table string) *Query {
	return &Query{Table: table}
}

// Select restricts the returned columns
func (q *Query) Select(columns ...string) *Query {
	q.Columns = append(q.Columns, columns...)
	return q
}

func (q *Query) where(column string, op Op, value any) *Query {
	q.Filters = append(q.Filters, Filter{Column: column, Op: op, Value: value})
	return q
}

// Eq filters column = value
func (q *Query) Eq(column string, value any) *Query { return q.where(column, OpEq, value) }

// Neq filters column <> value
func (q *Query) Neq(column string, value any) *Query { return q.where(column, OpNeq, value) }

// Gt filters column > value
func (q *Query) Gt(column string, value any) *Query { return q.where(column, OpGt, value) }

// Gte filters column >= value
func (q *Query) Gte(column string, value any) *Query { return q.where(column, OpGte, value) }

// Lt filters column < value
func (q *Query) Lt(column string, value any) *Query { return q.where(column, OpLt, value) }

// Lte filters column <= value
func (q *Query) Lte(column string, value any) *Query { return q.where(column, OpLte, value) }

// In filters column IN (values...)
func (q *Query) In(column string, values ...any) *Query { return q.where(column, OpIn, values) }

// OrderBy appends a sort key
func (q *Query) OrderBy(column string, desc bool) *Query {
	q.Orders = append(q.Orders, Order{Column: column, Desc: desc})
	return q
}

// Range sets offset and limit
func (q *Query) Range(offset, limit int) *Query {
	q.Offset = offset
	q.Limit = limit
	return q
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("store: invalid identifier %q", name)
	}
	return nil
}

// validate checks every identifier the query will interpolate
func (q *Query) validate() error {
	if q == nil {
		return errors.New("store: nil query")
	}
	if err := validIdentifier(q.Table); err != nil {
		return err
	}
	for _, c := range q.Columns {
		if err := validIdentifier(c); err != nil {
			return err
		}
	}
	for _, f := range q.Filters {
		if err := validIdentifier(f.Column); err != nil {
			return err
		}
		switch f.Op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn:
		default:
			return fmt.Errorf("store: unsupported operator %q", f.Op)
		}
	}
	for _, o := range q.Orders {
		if err := validIdentifier(o.Column); err != nil {
			return err
		}
	}
	if q.Offset < 0 || q.Limit < 0 {
		return errors.New("store: negative range")
	}
	return nil
}

// String renders the query for logs
func (q *Query) String() string {
	var sb strings.Builder
	sb.WriteString(q.Table)
	for _, f := range q.Filters {
		fmt.Fprintf(&sb, " %s%s?", f.Column, f.Op)
	}
	return sb.String()
}
