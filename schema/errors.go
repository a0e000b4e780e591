package schema

import "errors"

var (
	ErrDuplicateTable    = errors.New("schema: duplicate table")
	ErrUnsupportedType   = errors.New("schema: unsupported column type")
	ErrInvalidDefinition = errors.New("schema: invalid table definition")
	ErrRegistrySealed    = errors.New("schema: registry is sealed")
	ErrColumnMismatch    = errors.New("schema: column does not belong to table")
)
