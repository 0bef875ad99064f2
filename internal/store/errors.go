package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUniqueViolation is reported by drivers that enforce unique fields themselves.
var ErrUniqueViolation = errors.New("unique constraint violated")

// InvalidFieldError reports a field name the entity does not declare, or a
// value the field cannot hold. It signals a programming error.
type InvalidFieldError struct {
	Entity string
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s has no field %q", e.Entity, e.Field)
	}
	return fmt.Sprintf("%s field %q: %s", e.Entity, e.Field, e.Reason)
}

// PersistenceError wraps a failure raised by the backing store.
type PersistenceError struct {
	Entity string
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsUniqueViolation reports whether err stems from a unique constraint.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, ErrUniqueViolation) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
