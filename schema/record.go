package schema

// Record is a decoded row. Fields whose columns were not fetched hold
// their zero value; use Column.Get to tell the two apart.
type Record[R any] struct {
	Value R

	table   *Table[R]
	fetched []bool
}

// Fetched reports whether col was part of the row that produced r.
func (r Record[R]) Fetched(col ColumnRef[R]) bool {
	if col == nil || col.Owner() != r.table {
		return false
	}
	pos := col.Position()
	return pos >= 0 && pos < len(r.fetched) && r.fetched[pos]
}
