package schema

import (
	"fmt"
	"reflect"
)

// ValueKind is the wire-level kind of a column value.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindUInt64
	KindInt64
	KindFloat64
	KindString
	KindBool
	KindBytes
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindUInt64:  "uint64",
	KindInt64:   "int64",
	KindFloat64: "float64",
	KindString:  "string",
	KindBool:    "bool",
	KindBytes:   "bytes",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// SQLType is the store column type used for this kind.
func (k ValueKind) SQLType() string {
	switch k {
	case KindUInt64:
		return "UINT64"
	case KindInt64:
		return "INT64"
	case KindFloat64:
		return "FLOAT64"
	case KindString:
		return "TEXT"
	case KindBool:
		return "BOOL"
	case KindBytes:
		return "BYTES"
	}
	return ""
}

var bytesType = reflect.TypeFor[[]byte]()

// KindOf maps a Go type to its ValueKind. Named types follow their
// underlying kind; []byte is the only supported slice.
func KindOf(t reflect.Type) ValueKind {
	if t == nil {
		return KindInvalid
	}
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUInt64
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt64
	case reflect.Float32, reflect.Float64:
		return KindFloat64
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Slice:
		if t.Elem() == bytesType.Elem() {
			return KindBytes
		}
	}
	return KindInvalid
}

// Descriptor describes one column. It is immutable once declared.
type Descriptor struct {
	Name       string
	Kind       ValueKind
	PrimaryKey bool
}

// Normalize converts a Go value of this column's type to the canonical
// representation used on the wire: uint64, int64, float64, string, bool or []byte.
func (d Descriptor) Normalize(v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value for column %s", ErrColumnMismatch, d.Name)
	}
	rv := reflect.ValueOf(v)
	if KindOf(rv.Type()) != d.Kind {
		return nil, fmt.Errorf("%w: column %s expects %s, got %T", ErrColumnMismatch, d.Name, d.Kind, v)
	}
	return normalize(rv, d.Kind), nil
}
