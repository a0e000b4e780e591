package executor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/novaorm/internal/engine"
	"github.com/tuannm99/novaorm/internal/record"
	"github.com/tuannm99/novaorm/internal/sql/parser"
	"github.com/tuannm99/novaorm/internal/sql/planner"
)

var (
	ErrUnknownColumn = errors.New("executor: unknown column")
	ErrTypeMismatch  = errors.New("executor: value does not match column type")
	ErrOutOfRange    = fmt.Errorf("%w: value out of range", ErrTypeMismatch)
)

// executorDB is a small seam for unit-testing Executor without a real engine.
type executorDB interface {
	CreateTable(name string, schema record.Schema) (*engine.Table, error)
	OpenTable(name string) (*engine.Table, error)
	DropTable(name string) error
	ListTables() ([]engine.TableMeta, error)
}

var _ executorDB = (*engine.Database)(nil)

// Executor executes SQL against one engine database. It holds no per-session
// state, so one Executor may serve many connections.
type Executor struct {
	DB executorDB
}

func NewExecutor(db executorDB) *Executor {
	return &Executor{DB: db}
}

// ExecSQL is the top-level entry: SQL string -> Result.
func (e *Executor) ExecSQL(sql string) (*Result, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildPlan(stmt, e.DB)
	if err != nil {
		return nil, err
	}
	return e.execPlan(plan)
}

func (e *Executor) execPlan(p planner.Plan) (*Result, error) {
	switch plan := p.(type) {
	case *planner.CreateTablePlan:
		return e.execCreateTable(plan)
	case *planner.DropTablePlan:
		return e.execDropTable(plan)
	case *planner.ShowTablesPlan:
		return e.execShowTables()

	case *planner.InsertPlan:
		return e.execInsert(plan)

	case *planner.IndexLookupPlan:
		return e.execIndexLookup(plan)
	case *planner.SeqScanPlan:
		return e.execSeqScan(plan)

	case *planner.DeletePlan:
		return e.execDelete(plan)

	default:
		return nil, fmt.Errorf("executor: unsupported plan type %T", p)
	}
}

func (e *Executor) execCreateTable(p *planner.CreateTablePlan) (*Result, error) {
	_, err := e.DB.CreateTable(p.TableName, p.Schema)
	if err != nil {
		if p.IfNotExists && errors.Is(err, engine.ErrTableExists) {
			return &Result{AffectedRows: 0}, nil
		}
		return nil, err
	}
	return &Result{AffectedRows: 0}, nil
}

func (e *Executor) execDropTable(p *planner.DropTablePlan) (*Result, error) {
	if err := e.DB.DropTable(p.TableName); err != nil {
		if p.IfExists && errors.Is(err, engine.ErrTableNotFound) {
			return &Result{AffectedRows: 0}, nil
		}
		return nil, err
	}
	return &Result{AffectedRows: 0}, nil
}

func (e *Executor) execShowTables() (*Result, error) {
	metas, err := e.DB.ListTables()
	if err != nil {
		return nil, err
	}
	res := &Result{
		Columns: []string{"name", "columns", "rows"},
		Types:   []string{record.ColText.String(), record.ColInt64.String(), record.ColInt64.String()},
	}
	for _, m := range metas {
		res.Rows = append(res.Rows, []any{m.Name, int64(m.Schema.NumCols()), int64(m.RowCount)})
	}
	res.AffectedRows = int64(len(res.Rows))
	return res, nil
}

func (e *Executor) execInsert(p *planner.InsertPlan) (*Result, error) {
	tbl, err := e.DB.OpenTable(p.TableName)
	if err != nil {
		return nil, err
	}

	raw, err := arrangeInsertValues(tbl.Schema, p.Columns, p.Values)
	if err != nil {
		return nil, err
	}

	values, err := coerceInsertValues(tbl.Schema, raw)
	if err != nil {
		return nil, err
	}

	if err := tbl.Insert(values); err != nil {
		return nil, err
	}
	return &Result{AffectedRows: 1}, nil
}

func (e *Executor) execSeqScan(p *planner.SeqScanPlan) (*Result, error) {
	tbl, err := e.DB.OpenTable(p.TableName)
	if err != nil {
		return nil, err
	}

	res, proj, err := newProjection(tbl.Schema, p.Columns)
	if err != nil {
		return nil, err
	}

	var where *boundWhere
	if p.Where != nil {
		where, err = bindWhere(tbl.Schema, p.Where)
		if err != nil {
			return nil, err
		}
	}

	err = tbl.Scan(func(_ any, row []any) error {
		if where != nil && !where.match(row) {
			return nil
		}
		res.Rows = append(res.Rows, project(row, proj))
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.AffectedRows = int64(len(res.Rows))
	return res, nil
}

func (e *Executor) execIndexLookup(p *planner.IndexLookupPlan) (*Result, error) {
	tbl, err := e.DB.OpenTable(p.TableName)
	if err != nil {
		return nil, err
	}

	res, proj, err := newProjection(tbl.Schema, p.Columns)
	if err != nil {
		return nil, err
	}

	pk := tbl.Schema.Cols[tbl.Schema.PrimaryKey]
	key, err := coerceValue(pk, p.Key)
	if err != nil {
		if !errors.Is(err, ErrOutOfRange) {
			return nil, err
		}
		// out of range for the key type: no row can match
		slog.Debug("executor: index lookup key does not fit column", "table", p.TableName, "col", pk.Name, "err", err)
		return res, nil
	}

	row, ok, err := tbl.Get(key)
	if err != nil {
		return nil, err
	}
	if ok {
		res.Rows = append(res.Rows, project(row, proj))
	}
	res.AffectedRows = int64(len(res.Rows))
	return res, nil
}

func (e *Executor) execDelete(p *planner.DeletePlan) (*Result, error) {
	tbl, err := e.DB.OpenTable(p.TableName)
	if err != nil {
		return nil, err
	}

	var where *boundWhere
	if p.Where != nil {
		where, err = bindWhere(tbl.Schema, p.Where)
		if err != nil {
			return nil, err
		}
	}

	// collect first: Scan holds the table read lock
	var keys []any
	err = tbl.Scan(func(key any, row []any) error {
		if where == nil || where.match(row) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var affected int64
	for _, k := range keys {
		if tbl.Delete(k) {
			affected++
		}
	}
	return &Result{AffectedRows: affected}, nil
}

// ---- helpers ----

// newProjection resolves column names to positions; empty means every column.
func newProjection(schema record.Schema, cols []string) (*Result, []int, error) {
	res := &Result{}
	var proj []int
	if len(cols) == 0 {
		for i := range schema.Cols {
			proj = append(proj, i)
		}
	} else {
		for _, name := range cols {
			pos := schema.ColPos(name)
			if pos < 0 {
				return nil, nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
			}
			proj = append(proj, pos)
		}
	}
	for _, pos := range proj {
		res.Columns = append(res.Columns, schema.Cols[pos].Name)
		res.Types = append(res.Types, schema.Cols[pos].Type.String())
	}
	return res, proj, nil
}

func project(row []any, proj []int) []any {
	out := make([]any, len(proj))
	for i, pos := range proj {
		out[i] = row[pos]
	}
	return out
}

type boundWhere struct {
	pos   int
	value any
	never bool
}

func bindWhere(schema record.Schema, w *planner.WhereEq) (*boundWhere, error) {
	pos := schema.ColPos(w.Column)
	if pos < 0 {
		return nil, fmt.Errorf("%w in WHERE: %s", ErrUnknownColumn, w.Column)
	}
	if w.Value == nil {
		return &boundWhere{pos: pos}, nil
	}
	v, err := coerceValue(schema.Cols[pos], w.Value)
	if err != nil {
		if !errors.Is(err, ErrOutOfRange) {
			return nil, err
		}
		// out of range for the column type: no stored value can be equal
		return &boundWhere{pos: pos, never: true}, nil
	}
	return &boundWhere{pos: pos, value: v}, nil
}

func (w *boundWhere) match(row []any) bool {
	if w.never {
		return false
	}
	got := row[w.pos]
	if got == nil || w.value == nil {
		return got == nil && w.value == nil
	}
	if b, ok := got.([]byte); ok {
		return string(b) == string(w.value.([]byte))
	}
	return got == w.value
}

// arrangeInsertValues reorders values given with an explicit column list into
// schema order; missing columns become NULL.
func arrangeInsertValues(schema record.Schema, cols []string, values []any) ([]any, error) {
	if len(cols) == 0 {
		return values, nil
	}
	if len(cols) != len(values) {
		return nil, fmt.Errorf("executor: %d columns but %d values", len(cols), len(values))
	}
	out := make([]any, schema.NumCols())
	seen := make([]bool, schema.NumCols())
	for i, name := range cols {
		pos := schema.ColPos(name)
		if pos < 0 {
			return nil, fmt.Errorf("%w in INSERT: %s", ErrUnknownColumn, name)
		}
		if seen[pos] {
			return nil, fmt.Errorf("executor: column %s specified twice", name)
		}
		seen[pos] = true
		out[pos] = values[i]
	}
	return out, nil
}

func coerceInsertValues(schema record.Schema, raw []any) ([]any, error) {
	if len(raw) != len(schema.Cols) {
		return nil, fmt.Errorf("executor: insert values count %d != schema %d", len(raw), len(schema.Cols))
	}
	out := make([]any, len(raw))
	for i := range raw {
		if raw[i] == nil {
			if !schema.Cols[i].Nullable {
				return nil, fmt.Errorf("%w: column %s", engine.ErrNotNull, schema.Cols[i].Name)
			}
			continue
		}
		v, err := coerceValue(schema.Cols[i], raw[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// coerceValue converts a parsed literal to the Go type stored for col.
func coerceValue(col record.Column, v any) (any, error) {
	mismatch := func() error {
		return fmt.Errorf("%w: column %s expects %s, got %T", ErrTypeMismatch, col.Name, col.Type, v)
	}
	outOfRange := func() error {
		return fmt.Errorf("%w: %v for column %s (%s)", ErrOutOfRange, v, col.Name, col.Type)
	}

	switch col.Type {
	case record.ColInt32:
		x, ok := record.AsInt64(v)
		if !ok {
			if _, isUint := v.(uint64); isUint {
				return nil, outOfRange()
			}
			return nil, mismatch()
		}
		if x < -1<<31 || x > 1<<31-1 {
			return nil, outOfRange()
		}
		return int32(x), nil
	case record.ColInt64:
		x, ok := record.AsInt64(v)
		if !ok {
			if _, isUint := v.(uint64); isUint {
				return nil, outOfRange()
			}
			return nil, mismatch()
		}
		return x, nil
	case record.ColUint64:
		x, ok := record.AsUint64(v)
		if !ok {
			if _, isInt := v.(int64); isInt {
				return nil, outOfRange()
			}
			return nil, mismatch()
		}
		return x, nil
	case record.ColFloat64:
		x, ok := record.AsFloat64(v)
		if !ok {
			return nil, mismatch()
		}
		return x, nil
	case record.ColText:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		return s, nil
	case record.ColBool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch()
		}
		return b, nil
	case record.ColBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, mismatch()
		}
		return b, nil
	default:
		return nil, fmt.Errorf("executor: unsupported column type %v", col.Type)
	}
}
