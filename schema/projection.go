package schema

// Projection is an ordered, duplicate-free list of columns to select.
// An empty projection selects every declared column.
type Projection[R any] struct {
	cols []ColumnRef[R]
}

func Selected[R any]() *Projection[R] {
	return &Projection[R]{}
}

// Add appends col unless it is already present.
func (p *Projection[R]) Add(col ColumnRef[R]) *Projection[R] {
	if col == nil {
		return p
	}
	for _, c := range p.cols {
		if c.Owner() == col.Owner() && c.Position() == col.Position() {
			return p
		}
	}
	p.cols = append(p.cols, col)
	return p
}

func (p *Projection[R]) Len() int {
	if p == nil {
		return 0
	}
	return len(p.cols)
}

// Columns returns a copy of the chosen columns in selection order.
func (p *Projection[R]) Columns() []ColumnRef[R] {
	if p == nil {
		return nil
	}
	out := make([]ColumnRef[R], len(p.cols))
	copy(out, p.cols)
	return out
}

// Clone returns an independent copy, so later Add calls on p do not affect it.
func (p *Projection[R]) Clone() *Projection[R] {
	return &Projection[R]{cols: p.Columns()}
}
