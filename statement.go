package novaorm

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tuannm99/novaorm/schema"
)

func createTableSQL(e *schema.Entry) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(e.Table)
	b.WriteString(" (")
	for i, c := range e.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(' ')
		b.WriteString(c.Kind.SQLType())
		if c.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		} else {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(");")
	return b.String()
}

func insertSQL(table string, cols []schema.Descriptor, values []any) (string, error) {
	if len(cols) != len(values) {
		return "", fmt.Errorf("%w: %d columns, %d values", ErrColumnMismatch, len(cols), len(values))
	}

	names := make([]string, len(cols))
	lits := make([]string, len(values))
	for i, c := range cols {
		lit, err := literal(values[i])
		if err != nil {
			return "", fmt.Errorf("column %s: %w", c.Name, err)
		}
		names[i] = c.Name
		lits[i] = lit
	}

	return "INSERT INTO " + table +
		" (" + strings.Join(names, ", ") + ")" +
		" VALUES (" + strings.Join(lits, ", ") + ");", nil
}

type whereEq struct {
	column string
	value  any
}

func selectSQL(table string, cols []schema.Descriptor, where *whereEq) (string, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(" FROM ")
	b.WriteString(table)
	if where != nil {
		lit, err := literal(where.value)
		if err != nil {
			return "", fmt.Errorf("where %s: %w", where.column, err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where.column)
		b.WriteString(" = ")
		b.WriteString(lit)
	}
	b.WriteByte(';')
	return b.String(), nil
}

// literal renders a normalized value as a store literal.
func literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("%w: non-finite float %v", ErrUnsupportedType, x)
		}
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case []byte:
		return "X'" + hex.EncodeToString(x) + "'", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}
