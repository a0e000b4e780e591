package novaorm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tuannm99/novaorm/internal/engine"
	"github.com/tuannm99/novaorm/server/novasqlwire"
	"github.com/tuannm99/novaorm/sqlclient"
)

// Result is one statement's response from the store.
type Result struct {
	Columns      []string
	Types        []string
	Rows         [][]any
	RowsAffected int64
}

// Conn executes statements one at a time against the store.
type Conn interface {
	Exec(ctx context.Context, sql string) (*Result, error)
	Close() error
}

// Connector opens new connections for the pool.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

type ConnectorFunc func(ctx context.Context) (Conn, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) { return f(ctx) }

const (
	SchemeNovaSQL = "novasql"
	SchemeMem     = "mem"
)

// NewConnector picks a connector for the URL scheme:
//
//	novasql://host:port   TCP connection to a novasql server
//	mem://name            named in-process database
func NewConnector(u *url.URL, dialTimeout time.Duration, logger *slog.Logger) (Connector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(u.Scheme) {
	case SchemeNovaSQL:
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %s url has no host", ErrConnection, u.Scheme)
		}
		return &tcpConnector{addr: u.Host, timeout: dialTimeout}, nil
	case SchemeMem:
		name := u.Host + strings.TrimPrefix(u.Path, "/")
		if name == "" {
			name = "default"
		}
		return &memConnector{srv: novasqlwire.NewServer(engine.Named(name), logger)}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrConnection, u.Scheme)
	}
}

type tcpConnector struct {
	addr    string
	timeout time.Duration
}

func (c *tcpConnector) Connect(ctx context.Context) (Conn, error) {
	cli, err := sqlclient.DialContext(ctx, c.addr, c.timeout)
	if err != nil {
		return nil, err
	}
	return &wireConn{id: uuid.NewString(), cli: cli}, nil
}

// memConnector serves each connection from the in-process wire server over
// net.Pipe, so mem:// exercises the same protocol path as TCP.
type memConnector struct {
	srv *novasqlwire.Server
}

func (c *memConnector) Connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, server := net.Pipe()
	go c.srv.ServeConn(context.Background(), server)
	return &wireConn{id: uuid.NewString(), cli: sqlclient.NewClient(client)}, nil
}

type wireConn struct {
	id  string
	cli *sqlclient.Client
}

func (w *wireConn) Exec(ctx context.Context, sql string) (*Result, error) {
	res, err := w.cli.ExecContext(ctx, sql)
	if err != nil {
		var se *sqlclient.ServerError
		if errors.As(err, &se) {
			return nil, &StoreError{Code: se.Code, Message: se.Message}
		}
		return nil, err
	}
	return &Result{
		Columns:      res.Columns,
		Types:        res.Types,
		Rows:         res.Rows,
		RowsAffected: res.AffectedRows,
	}, nil
}

func (w *wireConn) Close() error { return w.cli.Close() }

func (w *wireConn) String() string { return "conn-" + w.id }
