package pool

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// Unbounded disables the MaxOpen cap.
	Unbounded = -1

	DefaultMaxIdle = 2
)

var (
	ErrExhausted = errors.New("pool: no connection available before acquire timeout")
	ErrClosed    = errors.New("pool: closed")
)

// Conn is anything the pool can hand out and later dispose of.
type Conn interface {
	Close() error
}

type DialFunc[C Conn] func(ctx context.Context) (C, error)

type Config struct {
	// MaxOpen caps idle plus checked-out connections. 0 means no connection
	// can ever be created; Unbounded removes the cap.
	MaxOpen int
	// MaxIdle caps retained idle connections. 0 means DefaultMaxIdle,
	// negative keeps none.
	MaxIdle int
	// AcquireTimeout bounds how long Acquire waits for a free slot.
	// 0 waits until the caller's context is done.
	AcquireTimeout time.Duration
}

type Stats struct {
	MaxOpen int
	Open    int
	Idle    int
	InUse   int
	Waiting int
}

// grant is what a waiter receives: an idle connection, permission to dial a
// new one, or an error.
type grant[C Conn] struct {
	conn    C
	hasConn bool
	err     error
}

type waiter[C Conn] struct {
	ch      chan grant[C]
	elem    *list.Element
	granted bool
}

// Pool hands out connections to one caller at a time.
// Idle -> CheckedOut on Acquire; CheckedOut -> Idle or Closed on Release.
type Pool[C Conn] struct {
	dial DialFunc[C]
	cfg  Config

	mu      sync.Mutex
	idle    []C
	open    int // idle + checked out + slots reserved for an in-flight dial
	inUse   int
	waiters list.List // of *waiter[C], FIFO
	closed  bool
}

func New[C Conn](dial DialFunc[C], cfg Config) *Pool[C] {
	return &Pool[C]{dial: dial, cfg: cfg}
}

// Acquire returns an idle connection, dials a new one while under MaxOpen,
// or waits for a Release. Waiting ends with ErrExhausted after
// AcquireTimeout, or with ctx.Err() when ctx is done first.
func (p *Pool[C]) Acquire(ctx context.Context) (C, error) {
	var zero C
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrClosed
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		p.inUse++
		p.mu.Unlock()
		return c, nil
	}
	if p.hasRoomLocked() {
		p.open++
		p.inUse++
		p.mu.Unlock()
		return p.dialReserved(ctx)
	}

	w := &waiter[C]{ch: make(chan grant[C], 1)}
	w.elem = p.waiters.PushBack(w)
	p.mu.Unlock()

	var timeout <-chan time.Time
	if p.cfg.AcquireTimeout > 0 {
		t := time.NewTimer(p.cfg.AcquireTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case g := <-w.ch:
		return p.take(ctx, g)
	case <-ctx.Done():
		return zero, p.abandon(w, ctx.Err())
	case <-timeout:
		return zero, p.abandon(w, ErrExhausted)
	}
}

// Release returns a checked-out connection. Unhealthy connections are
// closed and their slot is offered to the next waiter.
func (p *Pool[C]) Release(c C, healthy bool) {
	p.mu.Lock()
	p.inUse--

	if !healthy || p.closed {
		p.open--
		p.grantSlotLocked()
		p.mu.Unlock()
		_ = c.Close()
		return
	}

	if w := p.popWaiterLocked(); w != nil {
		p.inUse++
		w.ch <- grant[C]{conn: c, hasConn: true}
		p.mu.Unlock()
		return
	}

	if len(p.idle) >= p.maxIdle() {
		p.open--
		p.mu.Unlock()
		_ = c.Close()
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		MaxOpen: p.cfg.MaxOpen,
		Open:    p.open,
		Idle:    len(p.idle),
		InUse:   p.inUse,
		Waiting: p.waiters.Len(),
	}
}

// Close closes idle connections and fails pending waiters. Connections still
// checked out are closed when they are released.
func (p *Pool[C]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	for w := p.popWaiterLocked(); w != nil; w = p.popWaiterLocked() {
		w.ch <- grant[C]{err: ErrClosed}
	}
	p.mu.Unlock()

	var errs []error
	for _, c := range idle {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool[C]) take(ctx context.Context, g grant[C]) (C, error) {
	if g.err != nil {
		var zero C
		return zero, g.err
	}
	if g.hasConn {
		return g.conn, nil
	}
	return p.dialReserved(ctx)
}

// dialReserved dials into a slot already counted in open and inUse.
func (p *Pool[C]) dialReserved(ctx context.Context) (C, error) {
	c, err := p.dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.open--
		p.inUse--
		p.grantSlotLocked()
		p.mu.Unlock()
		var zero C
		return zero, err
	}
	return c, nil
}

// abandon removes a waiter that gave up. If a grant raced in, it is handed
// back so the connection or slot is not leaked.
func (p *Pool[C]) abandon(w *waiter[C], cause error) error {
	p.mu.Lock()
	if !w.granted {
		p.waiters.Remove(w.elem)
		p.mu.Unlock()
		return cause
	}
	p.mu.Unlock()

	g := <-w.ch
	switch {
	case g.err != nil:
	case g.hasConn:
		p.Release(g.conn, true)
	default:
		p.mu.Lock()
		p.open--
		p.inUse--
		p.grantSlotLocked()
		p.mu.Unlock()
	}
	return cause
}

// grantSlotLocked lets the oldest waiter dial if a creation slot is free.
func (p *Pool[C]) grantSlotLocked() {
	if p.closed || p.waiters.Len() == 0 || !p.hasRoomLocked() {
		return
	}
	w := p.popWaiterLocked()
	p.open++
	p.inUse++
	w.ch <- grant[C]{}
}

func (p *Pool[C]) popWaiterLocked() *waiter[C] {
	front := p.waiters.Front()
	if front == nil {
		return nil
	}
	w := p.waiters.Remove(front).(*waiter[C])
	w.granted = true
	return w
}

func (p *Pool[C]) hasRoomLocked() bool {
	return p.cfg.MaxOpen == Unbounded || p.open < p.cfg.MaxOpen
}

func (p *Pool[C]) maxIdle() int {
	switch {
	case p.cfg.MaxIdle < 0:
		return 0
	case p.cfg.MaxIdle == 0:
		return DefaultMaxIdle
	}
	return p.cfg.MaxIdle
}
