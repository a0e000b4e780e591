package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tuannm99/novaorm/internal/record"
)

var (
	ErrDatabaseClosed = errors.New("novasql: database is closed")
	ErrTableExists    = errors.New("novasql: table already exists")
	ErrTableNotFound  = errors.New("novasql: table does not exist")
	ErrBadSchema      = errors.New("novasql: invalid table schema")
)

type DatabaseOperation interface {
	CreateTable(name string, schema record.Schema) (*Table, error)
	OpenTable(name string) (*Table, error)
	DropTable(name string) error
	ListTables() ([]TableMeta, error)
	Close() error
}

type TableMeta struct {
	Name      string        `json:"name"`
	Schema    record.Schema `json:"schema"`
	RowCount  int           `json:"row_count"`
	CreatedAt time.Time     `json:"created_at"`
}

var _ DatabaseOperation = (*Database)(nil)

// Database is an in-memory catalog of tables. It is safe for concurrent use.
type Database struct {
	Name string

	mu     sync.RWMutex
	tables map[string]*Table
	closed bool
}

func NewDatabase(name string) *Database {
	return &Database{
		Name:   name,
		tables: make(map[string]*Table),
	}
}

func (db *Database) CreateTable(name string, schema record.Schema) (*Table, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if _, ok := db.tables[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, name)
	}

	tbl := newTable(name, schema)
	db.tables[name] = tbl
	slog.Debug("engine: table created", "db", db.Name, "table", name, "cols", schema.NumCols())
	return tbl, nil
}

func (db *Database) OpenTable(name string) (*Table, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrDatabaseClosed
	}
	tbl, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return tbl, nil
}

func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}
	if _, ok := db.tables[name]; !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	delete(db.tables, name)
	return nil
}

// ListTables returns table metadata sorted by name.
func (db *Database) ListTables() ([]TableMeta, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return nil, ErrDatabaseClosed
	}
	out := make([]TableMeta, 0, len(db.tables))
	for _, tbl := range db.tables {
		out = append(out, tbl.Meta())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}
	db.closed = true
	db.tables = nil
	return nil
}

func validateSchema(s record.Schema) error {
	if s.NumCols() == 0 {
		return fmt.Errorf("%w: no columns", ErrBadSchema)
	}
	seen := make(map[string]struct{}, len(s.Cols))
	for _, c := range s.Cols {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrBadSchema, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if s.PrimaryKey >= s.NumCols() {
		return fmt.Errorf("%w: primary key position %d out of range", ErrBadSchema, s.PrimaryKey)
	}
	return nil
}

// ---- named in-process databases ----

var (
	namedMu sync.Mutex
	named   = map[string]*Database{}
)

// Named returns the process-wide database registered under name, creating it on first use.
// Every caller asking for the same name shares the same tables.
func Named(name string) *Database {
	namedMu.Lock()
	defer namedMu.Unlock()

	db, ok := named[name]
	if !ok || db.isClosed() {
		db = NewDatabase(name)
		named[name] = db
	}
	return db
}

func (db *Database) isClosed() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.closed
}
