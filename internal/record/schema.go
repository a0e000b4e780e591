package record

import (
	"fmt"
	"strings"
)

type ColumnType uint8

const (
	ColInt32 ColumnType = iota
	ColInt64
	ColBool
	ColFloat64
	ColText  // UTF-8
	ColBytes // opaque bytes
	ColUint64
)

var colTypeNames = map[ColumnType]string{
	ColInt32:   "INT32",
	ColInt64:   "INT64",
	ColBool:    "BOOL",
	ColFloat64: "FLOAT64",
	ColText:    "TEXT",
	ColBytes:   "BYTES",
	ColUint64:  "UINT64",
}

func (t ColumnType) String() string {
	if s, ok := colTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ColumnType(%d)", uint8(t))
}

// ParseColumnType maps a SQL type name (and its common aliases) to a ColumnType.
func ParseColumnType(name string) (ColumnType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INT32":
		return ColInt32, nil
	case "INT", "INTEGER", "INT64", "BIGINT":
		return ColInt64, nil
	case "UINT64", "UBIGINT":
		return ColUint64, nil
	case "BOOL", "BOOLEAN":
		return ColBool, nil
	case "FLOAT64", "DOUBLE", "REAL", "FLOAT":
		return ColFloat64, nil
	case "TEXT", "VARCHAR", "STRING":
		return ColText, nil
	case "BYTES", "BLOB":
		return ColBytes, nil
	default:
		return 0, fmt.Errorf("%w: column type %s", ErrUnsupportedType, name)
	}
}

type Column struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

type Schema struct {
	Cols []Column `json:"cols"`

	// PrimaryKey is the position of the primary key column, -1 when the table has none.
	PrimaryKey int `json:"primary_key"`
}

func (s Schema) NumCols() int { return len(s.Cols) }

// ColPos returns the position of the named column, or -1.
func (s Schema) ColPos(name string) int {
	for i := range s.Cols {
		if s.Cols[i].Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) HasPrimaryKey() bool {
	return s.PrimaryKey >= 0 && s.PrimaryKey < len(s.Cols)
}
