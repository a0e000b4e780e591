package schema

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"unicode"
)

// Entry is the registered shape of one record type.
type Entry struct {
	Table      string
	Columns    []Descriptor
	RecordType reflect.Type

	def Definition
}

// Definition returns the declaration the entry was registered from.
func (e *Entry) Definition() Definition { return e.def }

type snapshot struct {
	byType map[reflect.Type]*Entry
	byName map[string]*Entry
}

// Registry maps record types to their table entries. Register calls are
// serialized; lookups read an immutable snapshot without locking.
type Registry struct {
	mu     sync.Mutex
	sealed bool
	snap   atomic.Pointer[snapshot]
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{
		byType: map[reflect.Type]*Entry{},
		byName: map[string]*Entry{},
	})
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Prepare validates def and returns the entry Register would add, without
// adding it. It fails with the same errors as Register.
func (r *Registry) Prepare(def Definition) (*Entry, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	entry, err := buildEntry(def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkLocked(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Register validates def and adds it. Registering the same record type or
// table name twice fails with ErrDuplicateTable and keeps the first entry.
func (r *Registry) Register(def Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	entry, err := buildEntry(def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(entry); err != nil {
		return err
	}
	cur := r.snap.Load()

	next := &snapshot{
		byType: make(map[reflect.Type]*Entry, len(cur.byType)+1),
		byName: make(map[string]*Entry, len(cur.byName)+1),
	}
	for k, v := range cur.byType {
		next.byType[k] = v
	}
	for k, v := range cur.byName {
		next.byName[k] = v
	}
	next.byType[entry.RecordType] = entry
	next.byName[entry.Table] = entry
	r.snap.Store(next)
	return nil
}

func (r *Registry) checkLocked(entry *Entry) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	cur := r.snap.Load()
	if prev, ok := cur.byName[entry.Table]; ok {
		return fmt.Errorf("%w: %s (already registered for %s)", ErrDuplicateTable, entry.Table, prev.RecordType)
	}
	if prev, ok := cur.byType[entry.RecordType]; ok {
		return fmt.Errorf("%w: %s is already registered as %s", ErrDuplicateTable, entry.RecordType, prev.Table)
	}
	return nil
}

// Seal rejects every later Register call.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Lookup(t reflect.Type) (*Entry, bool) {
	e, ok := r.snap.Load().byType[t]
	return e, ok
}

func (r *Registry) LookupTable(name string) (*Entry, bool) {
	e, ok := r.snap.Load().byName[name]
	return e, ok
}

// Tables returns every entry sorted by table name.
func (r *Registry) Tables() []*Entry {
	snap := r.snap.Load()
	out := make([]*Entry, 0, len(snap.byName))
	for _, e := range snap.byName {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// TableOf returns the registered declaration for R.
func TableOf[R any](r *Registry) (*Table[R], bool) {
	e, ok := r.Lookup(reflect.TypeFor[R]())
	if !ok {
		return nil, false
	}
	t, ok := e.def.(*Table[R])
	return t, ok
}

func buildEntry(def Definition) (*Entry, error) {
	if err := def.Err(); err != nil {
		return nil, err
	}
	name := def.Name()
	if !validIdent(name) {
		return nil, fmt.Errorf("%w: table name %q", ErrInvalidDefinition, name)
	}
	cols := def.Columns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s declares no columns", ErrInvalidDefinition, name)
	}

	seen := make(map[string]struct{}, len(cols))
	pks := 0
	for _, c := range cols {
		if c.Kind == KindInvalid || c.Kind.SQLType() == "" {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnsupportedType, name, c.Name)
		}
		if !validIdent(c.Name) {
			return nil, fmt.Errorf("%w: column name %q in %s", ErrInvalidDefinition, c.Name, name)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%w: column %s declared twice in %s", ErrInvalidDefinition, c.Name, name)
		}
		seen[c.Name] = struct{}{}
		if c.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return nil, fmt.Errorf("%w: table %s declares %d primary keys", ErrInvalidDefinition, name, pks)
	}

	return &Entry{
		Table:      name,
		Columns:    cols,
		RecordType: def.RecordType(),
		def:        def,
	}, nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
