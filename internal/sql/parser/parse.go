package parser

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax is wrapped by every error Parse returns.
var ErrSyntax = errors.New("syntax error")

func syntaxErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

// ParseIdent validates an identifier (table/column name).
// Rules:
//   - must be exactly one token (no spaces)
//   - first char: letter or '_'
//   - rest: letter/digit/'_'
func ParseIdent(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", syntaxErr("missing identifier")
	}

	parts := strings.Fields(s)
	if len(parts) != 1 {
		return "", syntaxErr("invalid identifier %q", s)
	}
	id := parts[0]

	for i, r := range id {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return "", syntaxErr("invalid identifier %q", id)
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", syntaxErr("invalid identifier %q", id)
		}
	}

	return id, nil
}

// Parse parses a single SQL statement into an AST.
// Policy: statement MUST end with ';'
func Parse(sql string) (Statement, error) {
	s := strings.TrimSpace(sql)
	if s == "" {
		return nil, syntaxErr("empty statement")
	}

	if !strings.HasSuffix(s, ";") {
		return nil, syntaxErr("missing ';' terminator")
	}

	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" {
		return nil, syntaxErr("empty statement")
	}

	up := strings.ToUpper(s)

	switch {
	case strings.HasPrefix(up, "CREATE TABLE"):
		return parseCreateTable(s)
	case strings.HasPrefix(up, "DROP TABLE"):
		return parseDropTable(s)
	case up == "SHOW TABLES":
		return &ShowTablesStmt{}, nil

	case strings.HasPrefix(up, "INSERT INTO"):
		return parseInsert(s)
	case strings.HasPrefix(up, "SELECT "):
		return parseSelect(s)
	case strings.HasPrefix(up, "DELETE FROM"):
		return parseDelete(s)

	default:
		return nil, syntaxErr("unsupported statement: %q", sql)
	}
}

func parseCreateTable(sql string) (Statement, error) {
	// "CREATE TABLE [IF NOT EXISTS] users (id UINT64 PRIMARY KEY, name TEXT NOT NULL)"
	rest := strings.TrimSpace(sql[len("CREATE TABLE"):])

	ifNotExists := false
	if strings.HasPrefix(strings.ToUpper(rest), "IF NOT EXISTS ") {
		ifNotExists = true
		rest = strings.TrimSpace(rest[len("IF NOT EXISTS "):])
	}

	parts := strings.SplitN(rest, "(", 2)
	if len(parts) != 2 {
		return nil, syntaxErr("invalid CREATE TABLE syntax")
	}

	tableName, err := ParseIdent(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid CREATE TABLE syntax: %w", err)
	}

	defPart := strings.TrimSpace(parts[1])
	if !strings.HasSuffix(defPart, ")") {
		return nil, syntaxErr("invalid CREATE TABLE syntax: missing ')'")
	}
	defPart = strings.TrimSpace(strings.TrimSuffix(defPart, ")"))
	if defPart == "" {
		return nil, syntaxErr("invalid CREATE TABLE syntax: empty column list")
	}

	var cols []ColumnDef
	for _, def := range strings.Split(defPart, ",") {
		col, err := parseColumnDef(def)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	return &CreateTableStmt{
		TableName:   tableName,
		IfNotExists: ifNotExists,
		Columns:     cols,
	}, nil
}

func parseColumnDef(def string) (ColumnDef, error) {
	def = strings.TrimSpace(def)
	toks := strings.Fields(def)
	if len(toks) < 2 {
		return ColumnDef{}, syntaxErr("invalid column def: %q", def)
	}

	colName, err := ParseIdent(toks[0])
	if err != nil {
		return ColumnDef{}, fmt.Errorf("invalid column name: %w", err)
	}

	col := ColumnDef{Name: colName, Type: strings.ToUpper(toks[1])}

	// trailing constraints: PRIMARY KEY | NOT NULL
	rest := toks[2:]
	for len(rest) > 0 {
		if len(rest) < 2 {
			return ColumnDef{}, syntaxErr("invalid column constraint in %q", def)
		}
		switch strings.ToUpper(rest[0] + " " + rest[1]) {
		case "PRIMARY KEY":
			col.PrimaryKey = true
		case "NOT NULL":
			col.NotNull = true
		default:
			return ColumnDef{}, syntaxErr("invalid column constraint in %q", def)
		}
		rest = rest[2:]
	}
	return col, nil
}

func parseDropTable(sql string) (Statement, error) {
	rest := strings.TrimSpace(sql[len("DROP TABLE"):])

	ifExists := false
	if strings.HasPrefix(strings.ToUpper(rest), "IF EXISTS ") {
		ifExists = true
		rest = rest[len("IF EXISTS "):]
	}

	name, err := ParseIdent(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid DROP TABLE syntax: %w", err)
	}
	return &DropTableStmt{TableName: name, IfExists: ifExists}, nil
}

func parseInsert(sql string) (Statement, error) {
	// "INSERT INTO users [(id, name)] VALUES (1, 'abc')"
	rest := strings.TrimSpace(sql[len("INSERT INTO"):])

	tablePart, valPart := splitKeyword(rest, "VALUES")
	if strings.TrimSpace(valPart) == "" {
		return nil, syntaxErr("invalid INSERT syntax")
	}

	var cols []string
	if open := strings.Index(tablePart, "("); open >= 0 {
		colPart := strings.TrimSpace(tablePart[open:])
		tablePart = tablePart[:open]
		if !strings.HasSuffix(colPart, ")") {
			return nil, syntaxErr("invalid INSERT column list")
		}
		names, err := parseIdentList(colPart[1 : len(colPart)-1])
		if err != nil {
			return nil, fmt.Errorf("invalid INSERT column list: %w", err)
		}
		cols = names
	}

	tableName, err := ParseIdent(tablePart)
	if err != nil {
		return nil, fmt.Errorf("invalid INSERT syntax: %w", err)
	}

	valPart = strings.TrimSpace(valPart)
	if !strings.HasPrefix(valPart, "(") || !strings.HasSuffix(valPart, ")") {
		return nil, syntaxErr("invalid INSERT values syntax")
	}
	valPart = strings.TrimSpace(valPart[1 : len(valPart)-1])

	var exprs []Expr
	for _, rv := range splitComma(valPart) {
		lit, err := parseLiteral(strings.TrimSpace(rv))
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, &LiteralExpr{Value: lit})
	}

	if len(cols) > 0 && len(cols) != len(exprs) {
		return nil, syntaxErr("INSERT has %d columns but %d values", len(cols), len(exprs))
	}

	return &InsertStmt{
		TableName: tableName,
		Columns:   cols,
		Values:    exprs,
	}, nil
}

func parseSelect(sql string) (Statement, error) {
	// "SELECT * | col1, col2 FROM users [WHERE col = literal]"
	rest := strings.TrimSpace(sql[len("SELECT"):])

	colPart, fromPart := splitKeyword(rest, "FROM")
	if strings.TrimSpace(fromPart) == "" {
		return nil, syntaxErr("invalid SELECT syntax: missing FROM")
	}

	var cols []string
	if strings.TrimSpace(colPart) != "*" {
		names, err := parseIdentList(colPart)
		if err != nil {
			return nil, fmt.Errorf("invalid SELECT column list: %w", err)
		}
		cols = names
	}

	tablePart, wherePart := splitKeyword(fromPart, "WHERE")
	tableName, err := ParseIdent(tablePart)
	if err != nil {
		return nil, fmt.Errorf("invalid SELECT syntax: %w", err)
	}

	var w *WhereEq
	if strings.TrimSpace(wherePart) != "" {
		w, err = parseWhereEq(wherePart)
		if err != nil {
			return nil, err
		}
	}

	return &SelectStmt{TableName: tableName, Columns: cols, Where: w}, nil
}

func parseDelete(sql string) (Statement, error) {
	// "DELETE FROM t [WHERE col=literal]"
	rest := strings.TrimSpace(sql[len("DELETE FROM"):])
	tablePart, wherePart := splitKeyword(rest, "WHERE")

	tableName, err := ParseIdent(tablePart)
	if err != nil {
		return nil, fmt.Errorf("invalid DELETE syntax: %w", err)
	}

	var w *WhereEq
	if strings.TrimSpace(wherePart) != "" {
		w, err = parseWhereEq(wherePart)
		if err != nil {
			return nil, err
		}
	}

	return &DeleteStmt{TableName: tableName, Where: w}, nil
}

func parseWhereEq(s string) (*WhereEq, error) {
	s = strings.TrimSpace(s)
	kv := strings.SplitN(s, "=", 2)
	if len(kv) != 2 {
		return nil, syntaxErr("only WHERE <col> = <literal> supported")
	}

	col, err := ParseIdent(kv[0])
	if err != nil {
		return nil, fmt.Errorf("invalid WHERE column: %w", err)
	}

	lit, err := parseLiteral(strings.TrimSpace(kv[1]))
	if err != nil {
		return nil, err
	}

	return &WhereEq{
		Column: col,
		Value:  &LiteralExpr{Value: lit},
	}, nil
}

func parseIdentList(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		id, err := ParseIdent(part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func parseLiteral(rv string) (any, error) {
	up := strings.ToUpper(rv)

	if up == "NULL" {
		return nil, nil
	}
	if up == "TRUE" {
		return true, nil
	}
	if up == "FALSE" {
		return false, nil
	}

	// STRING (single quotes, '' escapes a quote)
	if len(rv) >= 2 && rv[0] == '\'' && rv[len(rv)-1] == '\'' {
		return strings.ReplaceAll(rv[1:len(rv)-1], "''", "'"), nil
	}

	// BYTES: X'0a1b'
	if len(rv) >= 3 && (rv[0] == 'X' || rv[0] == 'x') && rv[1] == '\'' && rv[len(rv)-1] == '\'' {
		b, err := hex.DecodeString(rv[2 : len(rv)-1])
		if err != nil {
			return nil, syntaxErr("invalid bytes literal: %q", rv)
		}
		return b, nil
	}

	if !isNumeric(rv) {
		return nil, syntaxErr("unsupported literal: %q", rv)
	}
	if i, err := strconv.ParseInt(rv, 10, 64); err == nil {
		return i, nil
	}
	// values above MaxInt64 only fit unsigned columns
	if u, err := strconv.ParseUint(rv, 10, 64); err == nil {
		return u, nil
	}
	if f, err := strconv.ParseFloat(rv, 64); err == nil {
		return f, nil
	}

	return nil, syntaxErr("unsupported literal: %q", rv)
}

// isNumeric rejects words strconv would accept as floats (inf, nan).
func isNumeric(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return s != "" && (s[0] == '.' || (s[0] >= '0' && s[0] <= '9'))
}

// splitKeyword splits "X <keyword> Y" case-insensitively on the first
// occurrence of keyword outside single quotes. The keyword must be preceded
// by a space and followed by a space or '('.
// returns (X, Y). If keyword not present => (s, "").
func splitKeyword(s, keyword string) (string, string) {
	up := strings.ToUpper(s)
	k := strings.ToUpper(keyword)

	inQuote := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote || s[i] != ' ' || !strings.HasPrefix(up[i+1:], k) {
			continue
		}
		end := i + 1 + len(k)
		if end < len(s) && s[end] != ' ' && s[end] != '(' {
			continue
		}
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[end:])
	}
	return s, ""
}

// splitComma splits a comma-separated list, ignoring commas inside quotes.
func splitComma(s string) []string {
	parts := []string{}
	cur := strings.Builder{}
	inQuote := false
	for _, r := range s {
		switch r {
		case '\'':
			inQuote = !inQuote
			cur.WriteRune(r)
		case ',':
			if inQuote {
				cur.WriteRune(r)
			} else {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
