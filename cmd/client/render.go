package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/tuannm99/novaorm/internal/sql/executor"
)

// statementComplete reports whether buf holds a ';' outside single quotes.
func statementComplete(buf string) bool {
	inQuote := false
	for _, r := range buf {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			return true
		}
	}
	return false
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

func printResult(w io.Writer, res *executor.Result) {
	if len(res.Columns) == 0 {
		fmt.Fprintf(w, "OK (%d affected)\n", res.AffectedRows)
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(res.Columns)
	table.SetAutoFormatHeaders(false)

	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		out := make([]string, len(res.Columns))
		for i := range res.Columns {
			var typ string
			if i < len(res.Types) {
				typ = res.Types[i]
			}
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			out[i] = formatCell(typ, cell)
		}
		rows = append(rows, out)
	}
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintf(w, "(%d rows)\n", len(res.Rows))
}

func formatCell(typ string, v any) string {
	if v == nil {
		return "NULL"
	}
	// BYTES arrive base64 encoded; show them the way they are written in SQL
	if s, ok := v.(string); ok && typ == "BYTES" {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return "X'" + hex.EncodeToString(b) + "'"
		}
	}
	return fmt.Sprintf("%v", v)
}
