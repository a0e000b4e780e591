package parser

// Statement is the root interface for all SQL statements.
type Statement interface {
	stmtNode()
}

// ----- CREATE TABLE -----
type ColumnDef struct {
	Name       string
	Type       string // upper-cased SQL type name, mapped by the planner
	PrimaryKey bool
	NotNull    bool
}

type CreateTableStmt struct {
	TableName   string
	IfNotExists bool
	Columns     []ColumnDef
}

func (*CreateTableStmt) stmtNode() {}

// ----- DROP TABLE -----
type DropTableStmt struct {
	TableName string
	IfExists  bool
}

func (*DropTableStmt) stmtNode() {}

// ----- SHOW TABLES -----
type ShowTablesStmt struct{}

func (*ShowTablesStmt) stmtNode() {}

// ----- INSERT -----
type InsertStmt struct {
	TableName string
	Columns   []string // empty => schema order
	Values    []Expr   // only constant expr for now
}

func (*InsertStmt) stmtNode() {}

// ----- SELECT -----
type SelectStmt struct {
	TableName string
	Columns   []string // empty => SELECT *
	Where     *WhereEq
}

func (*SelectStmt) stmtNode() {}

// ----- DELETE -----
type DeleteStmt struct {
	TableName string
	Where     *WhereEq
}

func (*DeleteStmt) stmtNode() {}

// WhereEq is the only predicate form: <column> = <literal>.
type WhereEq struct {
	Column string
	Value  Expr
}

// ----- Expressions -----
type Expr interface {
	exprNode()
}

type LiteralExpr struct {
	Value any
}

func (*LiteralExpr) exprNode() {}
