package novaorm

import (
	"context"
	"fmt"

	"github.com/tuannm99/novaorm/schema"
)

// QueryHandle selects records of type R when Execute is called.
type QueryHandle[R any] struct {
	db    *DB
	proj  *schema.Projection[R]
	where *schema.Condition[R]
}

func Query[R any](db *DB) *QueryHandle[R] {
	return &QueryHandle[R]{db: db, proj: schema.Selected[R]()}
}

// Select fixes the columns to fetch. The projection is copied, so changing
// p afterwards does not affect this query. An empty projection fetches all columns.
func (q *QueryHandle[R]) Select(p *schema.Projection[R]) *QueryHandle[R] {
	q.proj = p.Clone()
	return q
}

// Where restricts the query to rows matching cond.
func (q *QueryHandle[R]) Where(cond schema.Condition[R]) *QueryHandle[R] {
	q.where = &cond
	return q
}

// SQL renders the statement Execute would send.
func (q *QueryHandle[R]) SQL() (string, error) {
	_, _, sql, err := q.plan()
	return sql, err
}

// Execute runs the select and decodes every row. Unselected fields keep
// their zero value and report not fetched through Column.Get.
func (q *QueryHandle[R]) Execute(ctx context.Context) ([]schema.Record[R], error) {
	tbl, positions, sql, err := q.plan()
	if err != nil {
		return nil, err
	}
	res, err := q.db.Exec(ctx, sql)
	if err != nil {
		return nil, err
	}
	return decodeRows(tbl, positions, res)
}

func (q *QueryHandle[R]) plan() (*schema.Table[R], []int, string, error) {
	tbl, err := tableFor[R](q.db)
	if err != nil {
		return nil, nil, "", err
	}
	all := tbl.Columns()

	var positions []int
	if q.proj.Len() == 0 {
		positions = make([]int, len(all))
		for i := range all {
			positions[i] = i
		}
	} else {
		for _, col := range q.proj.Columns() {
			if err := owned(tbl, col); err != nil {
				return nil, nil, "", err
			}
			positions = append(positions, col.Position())
		}
	}

	cols := make([]schema.Descriptor, len(positions))
	for i, pos := range positions {
		cols[i] = all[pos]
	}

	var where *whereEq
	if q.where != nil {
		if err := owned(tbl, q.where.Column); err != nil {
			return nil, nil, "", err
		}
		desc := all[q.where.Column.Position()]
		v, err := desc.Normalize(q.where.Value)
		if err != nil {
			return nil, nil, "", err
		}
		where = &whereEq{column: desc.Name, value: v}
	}

	sql, err := selectSQL(tbl.Name(), cols, where)
	if err != nil {
		return nil, nil, "", err
	}
	return tbl, positions, sql, nil
}

// owned rejects columns declared on a different Table than the registered one.
func owned[R any](tbl *schema.Table[R], col schema.ColumnRef[R]) error {
	if col == nil || col.Owner() != tbl {
		name := "<nil>"
		if col != nil {
			name = col.Descriptor().Name
		}
		return fmt.Errorf("%w: %s is not a column of registered table %s", ErrColumnMismatch, name, tbl.Name())
	}
	return nil
}
