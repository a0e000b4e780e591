package executor

// Result is the generic query result returned to the caller.
type Result struct {
	Columns []string `json:"columns,omitempty"`
	Types   []string `json:"types,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`

	// For DML:
	AffectedRows int64 `json:"affected_rows"`
}
