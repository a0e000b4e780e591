package novaorm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tuannm99/novaorm/schema"
)

// decodeRows maps each result row positionally onto a fresh R. positions[i]
// is the table column expected at result column i. Any mismatch aborts the
// whole result.
func decodeRows[R any](tbl *schema.Table[R], positions []int, res *Result) ([]schema.Record[R], error) {
	cols := tbl.Columns()

	if len(res.Columns) != len(positions) {
		return nil, fmt.Errorf("%w: got %d columns, want %d", ErrDecode, len(res.Columns), len(positions))
	}
	if len(res.Types) != 0 && len(res.Types) != len(positions) {
		return nil, fmt.Errorf("%w: got %d column types, want %d", ErrDecode, len(res.Types), len(positions))
	}
	for i, pos := range positions {
		want := cols[pos]
		if res.Columns[i] != want.Name {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrDecode, i, res.Columns[i], want.Name)
		}
		if len(res.Types) != 0 && res.Types[i] != want.Kind.SQLType() {
			return nil, fmt.Errorf("%w: column %s has type %s, want %s", ErrDecode, want.Name, res.Types[i], want.Kind.SQLType())
		}
	}

	out := make([]schema.Record[R], 0, len(res.Rows))
	for n, row := range res.Rows {
		if len(row) != len(positions) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDecode, n, len(row), len(positions))
		}
		var v R
		for i, pos := range positions {
			val, err := decodeValue(cols[pos].Kind, row[i])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %w", ErrDecode, n, cols[pos].Name, err)
			}
			if err := tbl.Set(&v, pos, val); err != nil {
				return nil, fmt.Errorf("%w: row %d: %w", ErrDecode, n, err)
			}
		}
		out = append(out, tbl.NewRecord(v, positions))
	}
	return out, nil
}

// decodeValue converts one wire value to the canonical Go type for kind.
// NULL decodes to nil, which leaves the field at its zero value.
func decodeValue(kind schema.ValueKind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch kind {
	case schema.KindUInt64:
		switch x := raw.(type) {
		case json.Number:
			return strconv.ParseUint(x.String(), 10, 64)
		case uint64:
			return x, nil
		case int64:
			if x >= 0 {
				return uint64(x), nil
			}
		}
	case schema.KindInt64:
		switch x := raw.(type) {
		case json.Number:
			return strconv.ParseInt(x.String(), 10, 64)
		case int64:
			return x, nil
		}
	case schema.KindFloat64:
		switch x := raw.(type) {
		case json.Number:
			return strconv.ParseFloat(x.String(), 64)
		case float64:
			return x, nil
		}
	case schema.KindString:
		if x, ok := raw.(string); ok {
			return x, nil
		}
	case schema.KindBool:
		if x, ok := raw.(bool); ok {
			return x, nil
		}
	case schema.KindBytes:
		switch x := raw.(type) {
		case string:
			return base64.StdEncoding.DecodeString(x)
		case []byte:
			return x, nil
		}
	}
	return nil, fmt.Errorf("unexpected %T for %s", raw, kind)
}
