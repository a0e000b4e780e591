package schema

// ColumnRef is a column of record type R with its value type erased.
// Only Column values implement it.
type ColumnRef[R any] interface {
	Descriptor() Descriptor
	// Owner is the Table the column was declared on.
	Owner() *Table[R]
	Position() int
	isColumn()
}

// Column is the typed accessor for one field of R, returned by Field.
type Column[R, V any] struct {
	table *Table[R]
	pos   int
	desc  Descriptor
	field func(*R) *V
}

func (c Column[R, V]) Descriptor() Descriptor { return c.desc }
func (c Column[R, V]) Owner() *Table[R]       { return c.table }
func (c Column[R, V]) Position() int          { return c.pos }
func (c Column[R, V]) Name() string           { return c.desc.Name }
func (c Column[R, V]) Table() string {
	if c.table == nil {
		return ""
	}
	return c.table.name
}
func (Column[R, V]) isColumn() {}

// Get returns the field value and true when the column was fetched into rec.
// Unfetched columns report the zero value and false.
func (c Column[R, V]) Get(rec Record[R]) (V, bool) {
	var zero V
	if c.field == nil || !rec.Fetched(c) {
		return zero, false
	}
	return *c.field(&rec.Value), true
}

// Condition restricts a query to rows where Column equals Value.
type Condition[R any] struct {
	Column ColumnRef[R]
	Value  any
}

func Eq[R, V any](col Column[R, V], v V) Condition[R] {
	return Condition[R]{Column: col, Value: v}
}
