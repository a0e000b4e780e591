// Package novaorm maps Go record types onto store tables and runs typed
// insert and select statements over a pooled connection.
package novaorm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tuannm99/novaorm/internal/pool"
	"github.com/tuannm99/novaorm/schema"
)

// Unbounded as Options.MaxOpen removes the connection cap.
const Unbounded = pool.Unbounded

type PoolStats = pool.Stats

type Options struct {
	// MaxOpen caps open connections. 0 allows none; use Unbounded for no cap.
	MaxOpen int
	// MaxIdle caps idle connections kept for reuse. 0 keeps pool.DefaultMaxIdle.
	MaxIdle int
	// AcquireTimeout bounds the wait for a connection. 0 waits until the
	// request context is done.
	AcquireTimeout time.Duration
	DialTimeout    time.Duration

	// Registry defaults to schema.DefaultRegistry().
	Registry *schema.Registry
	Logger   *slog.Logger
	// Connector overrides the one derived from the URL scheme.
	Connector Connector
}

// DefaultOptions is a bounded pool of 10 connections with no acquire timeout.
func DefaultOptions() Options {
	return Options{
		MaxOpen:     10,
		MaxIdle:     pool.DefaultMaxIdle,
		DialTimeout: 5 * time.Second,
	}
}

// DB is a handle to one store. It is safe for concurrent use.
type DB struct {
	pool   *pool.Pool[Conn]
	reg    *schema.Registry
	logger *slog.Logger
	closed atomic.Bool
}

// Connect parses rawURL, checks that the store is reachable and returns a DB.
// Query parameters max_open, max_idle, acquire_timeout and dial_timeout
// override opts.
func Connect(ctx context.Context, rawURL string, opts Options) (*DB, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", ErrConnection, err)
	}
	if opts, err = applyURLOptions(opts, u.Query()); err != nil {
		return nil, err
	}

	connector := opts.Connector
	if connector == nil {
		connector, err = NewConnector(u, opts.DialTimeout, opts.Logger)
		if err != nil {
			return nil, err
		}
	}

	probe, err := connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, u.Redacted(), err)
	}
	_ = probe.Close()

	db := New(connector, opts)
	db.logger.Info("database connected", "url", u.Redacted(), "max_open", opts.MaxOpen)
	return db, nil
}

// New returns a DB over connector without dialing.
func New(connector Connector, opts Options) *DB {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = schema.DefaultRegistry()
	}
	cfg := pool.Config{
		MaxOpen:        opts.MaxOpen,
		MaxIdle:        opts.MaxIdle,
		AcquireTimeout: opts.AcquireTimeout,
	}
	return &DB{
		pool:   pool.New[Conn](connector.Connect, cfg),
		reg:    reg,
		logger: logger,
	}
}

func (db *DB) Registry() *schema.Registry { return db.reg }

func (db *DB) Stats() PoolStats { return db.pool.Stats() }

// RegisterTable creates the table for def in the store if it does not exist
// yet, then adds def to the registry. A failed create leaves the registry
// untouched so the call can be retried.
func (db *DB) RegisterTable(ctx context.Context, def schema.Definition) error {
	entry, err := db.reg.Prepare(def)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, createTableSQL(entry)); err != nil {
		return fmt.Errorf("create table %s: %w", entry.Table, err)
	}
	if err := db.reg.Register(def); err != nil {
		return err
	}
	db.logger.Info("table registered", "table", entry.Table, "columns", len(entry.Columns))
	return nil
}

// Exec runs one raw statement on a pooled connection.
func (db *DB) Exec(ctx context.Context, sql string) (*Result, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		switch {
		case errors.Is(err, pool.ErrExhausted):
			return nil, fmt.Errorf("%w: %w", ErrPoolExhausted, err)
		case errors.Is(err, pool.ErrClosed):
			return nil, ErrClosed
		default:
			return nil, fmt.Errorf("%w: acquire: %w", ErrConnection, err)
		}
	}

	res, err := conn.Exec(ctx, sql)

	// Only an answered statement leaves the connection in a known state.
	var storeErr *StoreError
	healthy := err == nil || errors.As(err, &storeErr)
	db.pool.Release(conn, healthy)

	switch {
	case err == nil:
		return res, nil
	case storeErr != nil:
		db.logger.Debug("statement rejected", "code", storeErr.Code, "err", storeErr.Message)
		return nil, storeErr
	default:
		db.logger.Warn("connection discarded", "conn", conn, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
}

// Close closes idle connections; later calls fail with ErrClosed.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.pool.Close()
}

func applyURLOptions(opts Options, q url.Values) (Options, error) {
	ints := map[string]*int{
		"max_open": &opts.MaxOpen,
		"max_idle": &opts.MaxIdle,
	}
	for key, dst := range ints {
		if !q.Has(key) {
			continue
		}
		n, err := strconv.Atoi(q.Get(key))
		if err != nil {
			return opts, fmt.Errorf("%w: %s: %w", ErrConnection, key, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"acquire_timeout": &opts.AcquireTimeout,
		"dial_timeout":    &opts.DialTimeout,
	}
	for key, dst := range durations {
		if !q.Has(key) {
			continue
		}
		d, err := time.ParseDuration(q.Get(key))
		if err != nil {
			return opts, fmt.Errorf("%w: %s: %w", ErrConnection, key, err)
		}
		*dst = d
	}
	return opts, nil
}
