package novasqlwire

import (
	"errors"

	"github.com/tuannm99/novaorm/internal/engine"
	"github.com/tuannm99/novaorm/internal/record"
	"github.com/tuannm99/novaorm/internal/sql/executor"
	"github.com/tuannm99/novaorm/internal/sql/parser"
	"github.com/tuannm99/novaorm/internal/sql/planner"
)

// Error codes carried in ExecuteResponse.Code.
const (
	CodeConstraintViolation = "constraint_violation"
	CodeUndefinedTable      = "undefined_table"
	CodeDuplicateTable      = "duplicate_table"
	CodeUndefinedColumn     = "undefined_column"
	CodeSyntaxError         = "syntax_error"
	CodeDatatypeMismatch    = "datatype_mismatch"
	CodeInternalError       = "internal_error"
)

// ExecuteRequest is a single SQL command request.
type ExecuteRequest struct {
	ID  uint64 `json:"id"`
	SQL string `json:"sql"`
}

// ExecuteResponse is the response for a request ID.
type ExecuteResponse struct {
	ID     uint64           `json:"id"`
	Result *executor.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Code   string           `json:"code,omitempty"`
}

// CodeFor classifies an execution error for the client.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, engine.ErrDuplicateKey), errors.Is(err, engine.ErrNotNull):
		return CodeConstraintViolation
	case errors.Is(err, engine.ErrTableNotFound):
		return CodeUndefinedTable
	case errors.Is(err, engine.ErrTableExists):
		return CodeDuplicateTable
	case errors.Is(err, executor.ErrUnknownColumn):
		return CodeUndefinedColumn
	case errors.Is(err, executor.ErrTypeMismatch):
		return CodeDatatypeMismatch
	case errors.Is(err, parser.ErrSyntax), errors.Is(err, planner.ErrMultiplePrimaryKeys), errors.Is(err, engine.ErrBadSchema),
		errors.Is(err, record.ErrUnsupportedType):
		return CodeSyntaxError
	default:
		return CodeInternalError
	}
}
