package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaorm/internal/engine"
	"github.com/tuannm99/novaorm/internal/record"
	"github.com/tuannm99/novaorm/internal/sql/parser"
)

func mustParse(t *testing.T, sql string) parser.Statement {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	return stmt
}

func TestBuildPlan_CreateTable_NoDBNeeded(t *testing.T) {
	p, err := BuildPlan(mustParse(t, "CREATE TABLE IF NOT EXISTS users (id UINT64 PRIMARY KEY, name TEXT, active BOOL NOT NULL);"), nil)
	require.NoError(t, err)

	plan, ok := p.(*CreateTablePlan)
	require.True(t, ok)
	require.Equal(t, "users", plan.TableName)
	require.True(t, plan.IfNotExists)

	require.Len(t, plan.Schema.Cols, 3)
	require.Equal(t, 0, plan.Schema.PrimaryKey)

	require.Equal(t, record.ColUint64, plan.Schema.Cols[0].Type)
	require.False(t, plan.Schema.Cols[0].Nullable)

	require.Equal(t, record.ColText, plan.Schema.Cols[1].Type)
	require.True(t, plan.Schema.Cols[1].Nullable)

	require.Equal(t, record.ColBool, plan.Schema.Cols[2].Type)
	require.False(t, plan.Schema.Cols[2].Nullable)
}

func TestBuildPlan_CreateTable_Errors(t *testing.T) {
	_, err := BuildPlan(mustParse(t, "CREATE TABLE t (a INT PRIMARY KEY, b INT PRIMARY KEY);"), nil)
	require.ErrorIs(t, err, ErrMultiplePrimaryKeys)

	_, err = BuildPlan(mustParse(t, "CREATE TABLE t (a JSON);"), nil)
	require.Error(t, err)
}

func TestBuildPlan_CreateTable_NoPrimaryKey(t *testing.T) {
	p, err := BuildPlan(mustParse(t, "CREATE TABLE t (a INT);"), nil)
	require.NoError(t, err)
	require.Equal(t, -1, p.(*CreateTablePlan).Schema.PrimaryKey)
}

func TestBuildPlan_DropAndShow(t *testing.T) {
	p, err := BuildPlan(mustParse(t, "DROP TABLE IF EXISTS users;"), nil)
	require.NoError(t, err)
	require.Equal(t, &DropTablePlan{TableName: "users", IfExists: true}, p)

	p, err = BuildPlan(mustParse(t, "SHOW TABLES;"), nil)
	require.NoError(t, err)
	require.IsType(t, &ShowTablesPlan{}, p)
}

func TestBuildPlan_Insert(t *testing.T) {
	p, err := BuildPlan(mustParse(t, "INSERT INTO users (id, name) VALUES (1, 'a');"), nil)
	require.NoError(t, err)

	plan := p.(*InsertPlan)
	require.Equal(t, "users", plan.TableName)
	require.Equal(t, []string{"id", "name"}, plan.Columns)
	require.Equal(t, []any{int64(1), "a"}, plan.Values)
}

func TestBuildPlan_Select_SeqScanWithoutCatalog(t *testing.T) {
	p, err := BuildPlan(mustParse(t, "SELECT name FROM users WHERE id = 1;"), nil)
	require.NoError(t, err)

	plan := p.(*SeqScanPlan)
	require.Equal(t, []string{"name"}, plan.Columns)
	require.Equal(t, &WhereEq{Column: "id", Value: int64(1)}, plan.Where)
}

func TestBuildPlan_Select_PrimaryKeyLookup(t *testing.T) {
	db := engine.NewDatabase("planner")
	_, err := db.CreateTable("users", record.Schema{
		Cols: []record.Column{
			{Name: "id", Type: record.ColUint64},
			{Name: "name", Type: record.ColText, Nullable: true},
		},
		PrimaryKey: 0,
	})
	require.NoError(t, err)

	p, err := BuildPlan(mustParse(t, "SELECT name FROM users WHERE id = 1;"), db)
	require.NoError(t, err)
	require.Equal(t, &IndexLookupPlan{TableName: "users", Columns: []string{"name"}, Key: int64(1)}, p)

	// non-key column stays a scan
	p, err = BuildPlan(mustParse(t, "SELECT * FROM users WHERE name = 'a';"), db)
	require.NoError(t, err)
	require.IsType(t, &SeqScanPlan{}, p)

	_, err = BuildPlan(mustParse(t, "SELECT * FROM missing WHERE id = 1;"), db)
	require.ErrorIs(t, err, engine.ErrTableNotFound)
}

func TestBuildPlan_Delete(t *testing.T) {
	p, err := BuildPlan(mustParse(t, "DELETE FROM users WHERE id = 3;"), nil)
	require.NoError(t, err)
	require.Equal(t, &DeletePlan{TableName: "users", Where: &WhereEq{Column: "id", Value: int64(3)}}, p)
}

type bogusStmt struct{ parser.Statement }

func TestBuildPlan_Unsupported(t *testing.T) {
	_, err := BuildPlan(bogusStmt{}, nil)
	require.Error(t, err)
}
