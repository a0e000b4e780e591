package novaorm

import (
	"errors"
	"fmt"

	"github.com/tuannm99/novaorm/schema"
)

var (
	ErrConnection          = errors.New("novaorm: connection error")
	ErrPoolExhausted       = errors.New("novaorm: connection pool exhausted")
	ErrConstraintViolation = errors.New("novaorm: constraint violation")
	ErrDecode              = errors.New("novaorm: cannot decode row")
	ErrStatement           = errors.New("novaorm: statement rejected")
	ErrTableNotRegistered  = errors.New("novaorm: table not registered")
	ErrClosed              = errors.New("novaorm: database is closed")

	ErrColumnMismatch  = schema.ErrColumnMismatch
	ErrDuplicateTable  = schema.ErrDuplicateTable
	ErrUnsupportedType = schema.ErrUnsupportedType
)

// Store error codes a Conn may report in StoreError.Code.
const (
	CodeConstraintViolation = "constraint_violation"
	CodeUndefinedTable      = "undefined_table"
	CodeDuplicateTable      = "duplicate_table"
	CodeSyntaxError         = "syntax_error"
	CodeInternalError       = "internal_error"
)

// StoreError is a statement the store received and rejected. A Conn that
// returns one is still usable.
type StoreError struct {
	Code    string
	Message string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s (%s)", e.Message, e.Code)
}

// Unwrap lets callers match store errors with the package sentinels.
func (e *StoreError) Unwrap() error {
	if e.Code == CodeConstraintViolation {
		return ErrConstraintViolation
	}
	return ErrStatement
}
