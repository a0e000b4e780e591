package parser

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RequireSemicolon(t *testing.T) {
	_, err := Parse("SELECT * FROM users")
	require.ErrorIs(t, err, ErrSyntax)
	require.Contains(t, err.Error(), "missing ';'")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   ;")
	require.ErrorIs(t, err, ErrSyntax)
}

func TestParse_CreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id UINT64 PRIMARY KEY, name TEXT NOT NULL, active BOOL);")
	require.NoError(t, err)

	s, ok := stmt.(*CreateTableStmt)
	require.True(t, ok, "want *CreateTableStmt, got %T", stmt)

	require.Equal(t, "users", s.TableName)
	require.False(t, s.IfNotExists)
	require.Len(t, s.Columns, 3)

	assert.Equal(t, ColumnDef{Name: "id", Type: "UINT64", PrimaryKey: true}, s.Columns[0])
	assert.Equal(t, ColumnDef{Name: "name", Type: "TEXT", NotNull: true}, s.Columns[1])
	assert.Equal(t, ColumnDef{Name: "active", Type: "BOOL"}, s.Columns[2])
}

func TestParse_CreateTable_IfNotExists(t *testing.T) {
	stmt, err := Parse("create table if not exists users (id INT);")
	require.NoError(t, err)

	s := stmt.(*CreateTableStmt)
	require.True(t, s.IfNotExists)
	require.Equal(t, "users", s.TableName)
}

func TestParse_CreateTable_Invalid(t *testing.T) {
	for _, sql := range []string{
		"CREATE TABLE users id INT, name TEXT;",
		"CREATE TABLE users ();",
		"CREATE TABLE users ok (id INT);",
		"CREATE TABLE users (1id INT);",
		"CREATE TABLE users (id INT PRIMARY);",
		"CREATE TABLE users (id INT UNIQUE KEY);",
	} {
		_, err := Parse(sql)
		require.Error(t, err, sql)
	}
}

func TestParse_DropTable(t *testing.T) {
	stmt, err := Parse("DROP TABLE users;")
	require.NoError(t, err)
	assert.Equal(t, &DropTableStmt{TableName: "users"}, stmt)

	stmt, err = Parse("DROP TABLE IF EXISTS users;")
	require.NoError(t, err)
	assert.Equal(t, &DropTableStmt{TableName: "users", IfExists: true}, stmt)
}

func TestParse_ShowTables(t *testing.T) {
	stmt, err := Parse("show tables;")
	require.NoError(t, err)
	require.IsType(t, &ShowTablesStmt{}, stmt)
}

func TestParse_Insert(t *testing.T) {
	stmt, err := Parse("INSERT INTO users VALUES (1, 'abc', true, NULL, -2.5, X'0aff');")
	require.NoError(t, err)

	s, ok := stmt.(*InsertStmt)
	require.True(t, ok, "want *InsertStmt, got %T", stmt)

	assert.Equal(t, "users", s.TableName)
	assert.Empty(t, s.Columns)
	require.Len(t, s.Values, 6)

	want := []any{int64(1), "abc", true, nil, -2.5, []byte{0x0a, 0xff}}
	for i := range want {
		lit, ok := s.Values[i].(*LiteralExpr)
		require.True(t, ok, "value[%d]: want *LiteralExpr, got %T", i, s.Values[i])
		assert.True(t, reflect.DeepEqual(lit.Value, want[i]),
			"value[%d]: want %#v got %#v", i, want[i], lit.Value)
	}
}

func TestParse_Insert_WithColumns(t *testing.T) {
	stmt, err := Parse("INSERT INTO users (id, name) VALUES (18446744073709551615, 'it''s, ok');")
	require.NoError(t, err)

	s := stmt.(*InsertStmt)
	require.Equal(t, []string{"id", "name"}, s.Columns)
	require.Equal(t, uint64(18446744073709551615), s.Values[0].(*LiteralExpr).Value)
	require.Equal(t, "it's, ok", s.Values[1].(*LiteralExpr).Value)
}

func TestParse_Insert_ColumnValueCountMismatch(t *testing.T) {
	_, err := Parse("INSERT INTO users (id, name) VALUES (1);")
	require.ErrorIs(t, err, ErrSyntax)
}

func TestParse_Insert_LowercaseValues_ShouldPass(t *testing.T) {
	stmt, err := Parse("insert into users values (1);")
	require.NoError(t, err)

	s, ok := stmt.(*InsertStmt)
	require.True(t, ok)
	require.Equal(t, "users", s.TableName)
}

func TestParse_Insert_KeywordInsideString(t *testing.T) {
	stmt, err := Parse("INSERT INTO notes (body) VALUES ('x VALUES y');")
	require.NoError(t, err)
	require.Equal(t, "x VALUES y", stmt.(*InsertStmt).Values[0].(*LiteralExpr).Value)
}

func TestParse_Insert_BadLiteral(t *testing.T) {
	for _, sql := range []string{
		"INSERT INTO t VALUES (abc);",
		"INSERT INTO t VALUES (inf);",
		"INSERT INTO t VALUES (X'zz');",
	} {
		_, err := Parse(sql)
		require.ErrorIs(t, err, ErrSyntax, sql)
	}
}

func TestParse_SelectStar(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users;")
	require.NoError(t, err)
	assert.Equal(t, &SelectStmt{TableName: "users"}, stmt)
}

func TestParse_SelectColumnsWhere(t *testing.T) {
	stmt, err := Parse("SELECT name, email FROM users WHERE id = 7;")
	require.NoError(t, err)

	s := stmt.(*SelectStmt)
	require.Equal(t, "users", s.TableName)
	require.Equal(t, []string{"name", "email"}, s.Columns)
	require.NotNil(t, s.Where)
	require.Equal(t, "id", s.Where.Column)
	require.Equal(t, int64(7), s.Where.Value.(*LiteralExpr).Value)
}

func TestParse_SelectColumnNamedLikeKeyword(t *testing.T) {
	stmt, err := Parse("SELECT fromage FROM cheese;")
	require.NoError(t, err)
	require.Equal(t, []string{"fromage"}, stmt.(*SelectStmt).Columns)
}

func TestParse_Select_Invalid(t *testing.T) {
	for _, sql := range []string{
		"SELECT name users;",
		"SELECT 1x FROM users;",
		"SELECT * FROM users WHERE id > 1;",
	} {
		_, err := Parse(sql)
		require.Error(t, err, sql)
	}
}

func TestParse_Delete(t *testing.T) {
	stmt, err := Parse("DELETE FROM users WHERE name = 'bob';")
	require.NoError(t, err)

	s := stmt.(*DeleteStmt)
	require.Equal(t, "users", s.TableName)
	require.Equal(t, "bob", s.Where.Value.(*LiteralExpr).Value)

	stmt, err = Parse("DELETE FROM users;")
	require.NoError(t, err)
	require.Nil(t, stmt.(*DeleteStmt).Where)
}

func TestParse_Unsupported(t *testing.T) {
	_, err := Parse("UPDATE users SET name = 'x';")
	require.ErrorIs(t, err, ErrSyntax)
}
