package planner

import (
	"errors"
	"fmt"

	"github.com/tuannm99/novaorm/internal/engine"
	"github.com/tuannm99/novaorm/internal/record"
	"github.com/tuannm99/novaorm/internal/sql/parser"
)

var ErrMultiplePrimaryKeys = errors.New("planner: multiple primary keys")

// Catalog is the part of the engine the planner consults to pick access paths.
type Catalog interface {
	OpenTable(name string) (*engine.Table, error)
}

// BuildPlan builds a physical plan from an AST Statement.
// cat may be nil for statements that never need table metadata.
func BuildPlan(stmt parser.Statement, cat Catalog) (Plan, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return buildCreateTablePlan(s)
	case *parser.DropTableStmt:
		return &DropTablePlan{TableName: s.TableName, IfExists: s.IfExists}, nil
	case *parser.ShowTablesStmt:
		return &ShowTablesPlan{}, nil
	case *parser.InsertStmt:
		return buildInsertPlan(s)
	case *parser.SelectStmt:
		return buildSelectPlan(s, cat)
	case *parser.DeleteStmt:
		return buildDeletePlan(s)
	default:
		return nil, fmt.Errorf("planner: unsupported statement type %T", stmt)
	}
}

func buildCreateTablePlan(s *parser.CreateTableStmt) (Plan, error) {
	schema := record.Schema{PrimaryKey: -1}
	for i, c := range s.Columns {
		colType, err := record.ParseColumnType(c.Type)
		if err != nil {
			return nil, err
		}
		if c.PrimaryKey {
			if schema.PrimaryKey >= 0 {
				return nil, fmt.Errorf("%w: %s and %s", ErrMultiplePrimaryKeys,
					schema.Cols[schema.PrimaryKey].Name, c.Name)
			}
			schema.PrimaryKey = i
		}
		schema.Cols = append(schema.Cols, record.Column{
			Name:     c.Name,
			Type:     colType,
			Nullable: !c.NotNull && !c.PrimaryKey,
		})
	}
	return &CreateTablePlan{
		TableName:   s.TableName,
		Schema:      schema,
		IfNotExists: s.IfNotExists,
	}, nil
}

func buildInsertPlan(s *parser.InsertStmt) (Plan, error) {
	values, err := literals(s.Values)
	if err != nil {
		return nil, err
	}
	return &InsertPlan{
		TableName: s.TableName,
		Columns:   s.Columns,
		Values:    values,
	}, nil
}

func buildSelectPlan(s *parser.SelectStmt, cat Catalog) (Plan, error) {
	where, err := resolveWhere(s.Where)
	if err != nil {
		return nil, err
	}

	// WHERE <pk> = <literal> turns into a point lookup.
	if where != nil && where.Value != nil && cat != nil {
		tbl, err := cat.OpenTable(s.TableName)
		if err != nil {
			return nil, err
		}
		if tbl.Schema.HasPrimaryKey() && tbl.Schema.Cols[tbl.Schema.PrimaryKey].Name == where.Column {
			return &IndexLookupPlan{
				TableName: s.TableName,
				Columns:   s.Columns,
				Key:       where.Value,
			}, nil
		}
	}

	return &SeqScanPlan{
		TableName: s.TableName,
		Columns:   s.Columns,
		Where:     where,
	}, nil
}

func buildDeletePlan(s *parser.DeleteStmt) (Plan, error) {
	where, err := resolveWhere(s.Where)
	if err != nil {
		return nil, err
	}
	return &DeletePlan{TableName: s.TableName, Where: where}, nil
}

func resolveWhere(w *parser.WhereEq) (*WhereEq, error) {
	if w == nil {
		return nil, nil
	}
	v, err := literal(w.Value)
	if err != nil {
		return nil, err
	}
	return &WhereEq{Column: w.Column, Value: v}, nil
}

func literals(exprs []parser.Expr) ([]any, error) {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		v, err := literal(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func literal(e parser.Expr) (any, error) {
	lit, ok := e.(*parser.LiteralExpr)
	if !ok {
		return nil, fmt.Errorf("planner: only literal expressions supported, got %T", e)
	}
	return lit.Value, nil
}
