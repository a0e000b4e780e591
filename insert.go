package novaorm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tuannm99/novaorm/schema"
)

type InsertOutcome struct {
	RowsAffected int64
}

// InsertHandle writes one record when Execute is called.
type InsertHandle[R any] struct {
	db    *DB
	value R
}

func Insert[R any](db *DB, value R) *InsertHandle[R] {
	return &InsertHandle[R]{db: db, value: value}
}

// SQL renders the statement Execute would send.
func (h *InsertHandle[R]) SQL() (string, error) {
	tbl, err := tableFor[R](h.db)
	if err != nil {
		return "", err
	}
	v := h.value
	return insertSQL(tbl.Name(), tbl.Columns(), tbl.Values(&v))
}

// Execute sends the insert. It is not retried on failure.
func (h *InsertHandle[R]) Execute(ctx context.Context) (InsertOutcome, error) {
	sql, err := h.SQL()
	if err != nil {
		return InsertOutcome{}, err
	}
	res, err := h.db.Exec(ctx, sql)
	if err != nil {
		return InsertOutcome{}, err
	}
	return InsertOutcome{RowsAffected: res.RowsAffected}, nil
}

func tableFor[R any](db *DB) (*schema.Table[R], error) {
	if db == nil {
		return nil, ErrClosed
	}
	tbl, ok := schema.TableOf[R](db.reg)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotRegistered, reflect.TypeFor[R]())
	}
	return tbl, nil
}
