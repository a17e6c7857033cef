package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// Database error codes this package interprets
const (
	pgUniqueViolation          = "23505"
	sqliteConstraint           = 19
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

// Error is a database failure that carries a driver error code
type Error struct {
	Code    string
	Message string
	Detail  string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("store error %s: %s", e.Code, e.Message)
}

// Unwrap exposes the driver error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsUniqueViolation reports whether the error is a duplicate key error
func (e *Error) IsUniqueViolation() bool {
	switch e.Code {
	case pgUniqueViolation, strconv.Itoa(sqliteConstraintUnique), strconv.Itoa(sqliteConstraintPrimaryKey):
		return true
	case strconv.Itoa(sqliteConstraint):
		// Primary result code when extended codes are unavailable
		return strings.Contains(e.Message, "UNIQUE constraint failed")
	}
	return false
}

// AsError extracts a *Error from an error chain
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsUniqueViolation reports whether err is a duplicate key error
func IsUniqueViolation(err error) bool {
	se, ok := AsError(err)
	return ok && se.IsUniqueViolation()
}

// translate converts driver errors into ErrNoRows or *Error
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Detail:  pgErr.Detail,
			Err:     err,
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return &Error{
			Code:    strconv.Itoa(liteErr.Code()),
			Message: liteErr.Error(),
			Err:     err,
		}
	}

	return err
}
