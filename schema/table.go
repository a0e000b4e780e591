package schema

import (
	"fmt"
	"math"
	"reflect"
)

// Definition is the type-erased view of a Table that the Registry stores.
type Definition interface {
	Name() string
	RecordType() reflect.Type
	Columns() []Descriptor
	// Err reports a problem found while the table was being declared.
	Err() error
}

// Table declares how record type R maps to a store table. Build it once,
// at package init, with NewTable followed by one Field call per column.
type Table[R any] struct {
	name  string
	cols  []Descriptor
	bind  []binding[R]
	err   error
	probe R
}

// binding reads and writes one field of R as a reflect.Value.
type binding[R any] func(r *R) reflect.Value

func NewTable[R any](name string) *Table[R] {
	return &Table[R]{name: name}
}

func (t *Table[R]) Name() string { return t.name }

func (t *Table[R]) RecordType() reflect.Type { return reflect.TypeFor[R]() }

func (t *Table[R]) Columns() []Descriptor {
	out := make([]Descriptor, len(t.cols))
	copy(out, t.cols)
	return out
}

func (t *Table[R]) Err() error { return t.err }

// PrimaryKey returns the position of the primary key column, or -1.
func (t *Table[R]) PrimaryKey() int {
	for i, c := range t.cols {
		if c.PrimaryKey {
			return i
		}
	}
	return -1
}

// Values decomposes r into its column values in declaration order.
// Named types are normalized to uint64, int64, float64, string, bool or []byte.
func (t *Table[R]) Values(r *R) []any {
	out := make([]any, len(t.bind))
	for i, b := range t.bind {
		out[i] = normalize(b(r), t.cols[i].Kind)
	}
	return out
}

// Set stores a normalized value into the field at column position pos.
// A nil value leaves the field at its zero value.
func (t *Table[R]) Set(r *R, pos int, v any) error {
	if pos < 0 || pos >= len(t.bind) {
		return fmt.Errorf("%w: position %d out of range for %s", ErrColumnMismatch, pos, t.name)
	}
	dst := t.bind[pos](r)
	if v == nil {
		dst.SetZero()
		return nil
	}
	return assign(dst, t.cols[pos], v)
}

// NewRecord wraps a decoded value; fetched lists the positions the store returned.
func (t *Table[R]) NewRecord(v R, fetched []int) Record[R] {
	rec := Record[R]{Value: v, table: t, fetched: make([]bool, len(t.cols))}
	for _, pos := range fetched {
		if pos >= 0 && pos < len(rec.fetched) {
			rec.fetched[pos] = true
		}
	}
	return rec
}

// ColumnOption adjusts a column while it is being declared.
type ColumnOption func(*Descriptor)

func PrimaryKey() ColumnOption {
	return func(d *Descriptor) { d.PrimaryKey = true }
}

// Field declares the next column of t. field must return a pointer into the
// record it is given, e.g. func(u *User) *string { return &u.Name }.
// Problems are recorded on t and reported by Registry.Register.
func Field[R, V any](t *Table[R], name string, field func(*R) *V, opts ...ColumnOption) Column[R, V] {
	desc := Descriptor{Name: name, Kind: KindOf(reflect.TypeFor[V]())}
	for _, opt := range opts {
		opt(&desc)
	}
	pos := len(t.cols)

	switch {
	case t.err != nil:
	case field == nil:
		t.err = fmt.Errorf("%w: %s.%s has no field accessor", ErrInvalidDefinition, t.name, name)
	case desc.Kind == KindInvalid:
		t.err = fmt.Errorf("%w: %s.%s has Go type %s", ErrUnsupportedType, t.name, name, reflect.TypeFor[V]())
	case !insideProbe(&t.probe, field(&t.probe)):
		t.err = fmt.Errorf("%w: %s.%s accessor does not point into the record", ErrInvalidDefinition, t.name, name)
	}

	t.cols = append(t.cols, desc)
	t.bind = append(t.bind, func(r *R) reflect.Value {
		return reflect.ValueOf(field(r)).Elem()
	})
	return Column[R, V]{table: t, pos: pos, desc: desc, field: field}
}

// insideProbe reports whether p addresses memory inside *probe.
func insideProbe[R, V any](probe *R, p *V) bool {
	if p == nil {
		return false
	}
	base := reflect.ValueOf(probe).Pointer()
	addr := reflect.ValueOf(p).Pointer()
	size := reflect.TypeFor[R]().Size()
	return addr >= base && addr < base+size
}

func normalize(v reflect.Value, kind ValueKind) any {
	switch kind {
	case KindUInt64:
		return v.Uint()
	case KindInt64:
		return v.Int()
	case KindFloat64:
		return v.Float()
	case KindString:
		return v.String()
	case KindBool:
		return v.Bool()
	case KindBytes:
		if v.IsNil() {
			return []byte(nil)
		}
		return append([]byte(nil), v.Bytes()...)
	}
	return nil
}

func assign(dst reflect.Value, d Descriptor, v any) error {
	mismatch := func() error {
		return fmt.Errorf("%w: column %s expects %s, got %T", ErrColumnMismatch, d.Name, d.Kind, v)
	}
	overflow := func() error {
		return fmt.Errorf("%w: value %v overflows column %s (%s)", ErrColumnMismatch, v, d.Name, dst.Type())
	}

	switch d.Kind {
	case KindUInt64:
		x, ok := v.(uint64)
		if !ok {
			return mismatch()
		}
		if dst.OverflowUint(x) {
			return overflow()
		}
		dst.SetUint(x)
	case KindInt64:
		x, ok := v.(int64)
		if !ok {
			return mismatch()
		}
		if dst.OverflowInt(x) {
			return overflow()
		}
		dst.SetInt(x)
	case KindFloat64:
		x, ok := v.(float64)
		if !ok {
			return mismatch()
		}
		if dst.Kind() == reflect.Float32 && !math.IsInf(x, 0) && dst.OverflowFloat(x) {
			return overflow()
		}
		dst.SetFloat(x)
	case KindString:
		x, ok := v.(string)
		if !ok {
			return mismatch()
		}
		dst.SetString(x)
	case KindBool:
		x, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		dst.SetBool(x)
	case KindBytes:
		x, ok := v.([]byte)
		if !ok {
			return mismatch()
		}
		if x == nil {
			dst.SetBytes(nil)
			break
		}
		dst.SetBytes(append(make([]byte, 0, len(x)), x...))
	default:
		return mismatch()
	}
	return nil
}
