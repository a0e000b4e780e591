package engine

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petar/GoLLRB/llrb"

	"github.com/tuannm99/novaorm/internal/record"
)

var (
	ErrDuplicateKey = errors.New("novasql: duplicate key value violates primary key constraint")
	ErrNotNull      = errors.New("novasql: null value violates not-null constraint")
)

// Table keeps encoded rows in a left-leaning red-black tree ordered by the
// primary key, or by a hidden insertion sequence when the table has none.
type Table struct {
	Name      string
	Schema    record.Schema
	CreatedAt time.Time

	mu    sync.RWMutex
	rows  *llrb.LLRB
	rowID uint64
}

type rowItem struct {
	key  any
	data []byte
}

func (r rowItem) Less(than llrb.Item) bool {
	return compareKeys(r.key, than.(rowItem).key) < 0
}

func newTable(name string, schema record.Schema) *Table {
	return &Table{
		Name:      name,
		Schema:    schema,
		CreatedAt: time.Now(),
		rows:      llrb.New(),
	}
}

func (t *Table) Meta() TableMeta {
	return TableMeta{
		Name:      t.Name,
		Schema:    t.Schema,
		RowCount:  t.Len(),
		CreatedAt: t.CreatedAt,
	}
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows.Len()
}

// Insert stores one row. values must already be coerced to the schema types.
func (t *Table) Insert(values []any) error {
	data, err := record.EncodeRow(t.Schema, values)
	if err != nil {
		if errors.Is(err, record.ErrSchemaMismatchNotAllowNull) {
			return fmt.Errorf("%w: table %s", ErrNotNull, t.Name)
		}
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var key any
	if t.Schema.HasPrimaryKey() {
		key = values[t.Schema.PrimaryKey]
		if key == nil {
			return fmt.Errorf("%w: primary key %s", ErrNotNull, t.Schema.Cols[t.Schema.PrimaryKey].Name)
		}
		if t.rows.Has(rowItem{key: key}) {
			return fmt.Errorf("%w: %s=%v", ErrDuplicateKey, t.Schema.Cols[t.Schema.PrimaryKey].Name, key)
		}
	} else {
		t.rowID++
		key = t.rowID
	}

	t.rows.InsertNoReplace(rowItem{key: key, data: data})
	return nil
}

// Get looks a row up by primary key.
func (t *Table) Get(key any) ([]any, bool, error) {
	if !t.Schema.HasPrimaryKey() {
		return nil, false, fmt.Errorf("novasql: table %s has no primary key", t.Name)
	}

	t.mu.RLock()
	item := t.rows.Get(rowItem{key: key})
	t.mu.RUnlock()

	if item == nil {
		return nil, false, nil
	}
	row, err := record.DecodeRow(t.Schema, item.(rowItem).data)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Scan calls fn for every row in key order. fn must not modify the table.
func (t *Table) Scan(fn func(key any, row []any) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	first := t.rows.Min()
	if first == nil {
		return nil
	}

	var scanErr error
	t.rows.AscendGreaterOrEqual(first, func(i llrb.Item) bool {
		it := i.(rowItem)
		row, err := record.DecodeRow(t.Schema, it.data)
		if err != nil {
			scanErr = err
			return false
		}
		if err := fn(it.key, row); err != nil {
			scanErr = err
			return false
		}
		return true
	})
	return scanErr
}

// Delete removes the row stored under key and reports whether it existed.
func (t *Table) Delete(key any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows.Delete(rowItem{key: key}) != nil
}

// compareKeys orders keys of the same column type; nil sorts first.
func compareKeys(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch x := a.(type) {
	case int64:
		return cmp.Compare(x, b.(int64))
	case int32:
		return cmp.Compare(x, b.(int32))
	case uint64:
		return cmp.Compare(x, b.(uint64))
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return cmp.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case []byte:
		return bytes.Compare(x, b.([]byte))
	default:
		panic(fmt.Sprintf("novasql: unsupported key type %T", a))
	}
}
