package sqlclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tuannm99/novaorm/internal/sql/executor"
	"github.com/tuannm99/novaorm/server/novasqlwire"
)

var (
	ErrNilClient  = errors.New("sqlclient: nil client")
	ErrIDMismatch = errors.New("sqlclient: response id mismatch")
)

// ServerError is a statement the server received and rejected.
// The connection stays usable after one.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Client is a simple synchronous client.
// It locks send/recv so you can call Exec concurrently but they'll serialize.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
	id   atomic.Uint64

	// Optional per-request timeout (0 = no timeout).
	rwTimeout time.Duration
}

// NewClient wraps an established connection, e.g. one end of net.Pipe.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	return DialContext(context.Background(), addr, timeout)
}

func DialContext(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(c), nil
}

// SetRWTimeout sets a per-Exec read/write deadline.
func (c *Client) SetRWTimeout(d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rwTimeout = d
	c.mu.Unlock()
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Exec(sql string) (*executor.Result, error) {
	return c.ExecContext(context.Background(), sql)
}

// ExecContext sends one statement and waits for its response.
// A *ServerError means the server answered; any other error leaves the
// connection in an unknown state and it should be discarded.
func (c *Client) ExecContext(ctx context.Context, sql string) (*executor.Result, error) {
	if c == nil || c.conn == nil {
		return nil, ErrNilClient
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	reqID := c.id.Add(1)

	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	// Cancellation unblocks the in-flight read/write by expiring the deadline.
	expired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
		close(expired)
	})
	defer func() {
		if !stop() {
			// the callback already started; let it finish before clearing
			<-expired
		}
		// Clear deadline after request so idle connection doesn't expire.
		_ = c.conn.SetDeadline(time.Time{})
	}()

	req := novasqlwire.ExecuteRequest{ID: reqID, SQL: sql}
	if err := novasqlwire.WriteFrame(c.conn, req); err != nil {
		return nil, c.ioErr(ctx, err)
	}

	var resp novasqlwire.ExecuteResponse
	if err := novasqlwire.ReadFrame(c.conn, &resp); err != nil {
		return nil, c.ioErr(ctx, err)
	}

	if resp.ID != reqID {
		return nil, fmt.Errorf("%w: got=%d want=%d", ErrIDMismatch, resp.ID, reqID)
	}
	if resp.Error != "" {
		return nil, &ServerError{Code: resp.Code, Message: resp.Error}
	}
	if resp.Result == nil {
		return &executor.Result{}, nil
	}
	return resp.Result, nil
}

func (c *Client) applyDeadline(ctx context.Context) error {
	// Prefer context deadline if present; otherwise use rwTimeout.
	if dl, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(dl)
	}
	if c.rwTimeout > 0 {
		return c.conn.SetDeadline(time.Now().Add(c.rwTimeout))
	}
	return c.conn.SetDeadline(time.Time{})
}

func (c *Client) ioErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
