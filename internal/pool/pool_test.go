package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     int64
	closed atomic.Bool
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

type dialer struct {
	next  atomic.Int64
	fail  atomic.Bool
	conns sync.Map
}

func (d *dialer) dial(ctx context.Context) (*fakeConn, error) {
	if d.fail.Load() {
		return nil, errors.New("dial refused")
	}
	c := &fakeConn{id: d.next.Add(1)}
	d.conns.Store(c.id, c)
	return c, nil
}

func TestPool_ReusesHealthyConnection(t *testing.T) {
	d := &dialer{}
	p := New(d.dial, Config{MaxOpen: 2})
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(c1, true)

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.Equal(t, int64(1), d.next.Load())

	st := p.Stats()
	require.Equal(t, 1, st.Open)
	require.Equal(t, 1, st.InUse)
	require.Equal(t, 0, st.Idle)
}

func TestPool_UnhealthyConnectionIsReplaced(t *testing.T) {
	d := &dialer{}
	p := New(d.dial, Config{MaxOpen: 1})
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(c1, false)
	require.True(t, c1.closed.Load())
	require.Equal(t, 0, p.Stats().Open)

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotSame(t, c1, c2)
	require.Equal(t, int64(2), c2.id)
}

func TestPool_ZeroCapacityWithTimeout(t *testing.T) {
	d := &dialer{}
	p := New(d.dial, Config{MaxOpen: 0, AcquireTimeout: 30 * time.Millisecond})

	start := time.Now()
	_, err := p.Acquire(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	require.Equal(t, 0, p.Stats().Waiting)
	require.Equal(t, int64(0), d.next.Load())
}

func TestPool_ZeroCapacityWithoutTimeoutBlocksUntilCancel(t *testing.T) {
	p := New((&dialer{}).dial, Config{MaxOpen: 0})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("acquire returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 1, p.Stats().Waiting)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
	require.Equal(t, 0, p.Stats().Waiting)
}

func TestPool_WaiterGetsReleasedConnection(t *testing.T) {
	p := New((&dialer{}).dial, Config{MaxOpen: 1})
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan *fakeConn, 1)
	go func() {
		c, err := p.Acquire(ctx)
		assert.NoError(t, err)
		got <- c
	}()

	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)
	p.Release(c1, true)

	select {
	case c := <-got:
		require.Same(t, c1, c)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestPool_WaiterDialsAfterUnhealthyRelease(t *testing.T) {
	p := New((&dialer{}).dial, Config{MaxOpen: 1})
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan *fakeConn, 1)
	go func() {
		c, err := p.Acquire(ctx)
		assert.NoError(t, err)
		got <- c
	}()

	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)
	p.Release(c1, false)

	select {
	case c := <-got:
		require.Equal(t, int64(2), c.id)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken")
	}
	require.Equal(t, 1, p.Stats().Open)
}

func TestPool_DialFailureFreesSlot(t *testing.T) {
	d := &dialer{}
	d.fail.Store(true)
	p := New(d.dial, Config{MaxOpen: 1})

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, p.Stats().Open)

	d.fail.Store(false)
	_, err = p.Acquire(context.Background())
	require.NoError(t, err)
}

func TestPool_MaxIdle(t *testing.T) {
	p := New((&dialer{}).dial, Config{MaxOpen: Unbounded, MaxIdle: 1})
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)

	p.Release(a, true)
	p.Release(b, true)

	require.False(t, a.closed.Load())
	require.True(t, b.closed.Load())
	st := p.Stats()
	require.Equal(t, 1, st.Idle)
	require.Equal(t, 1, st.Open)
}

func TestPool_NoDoubleCheckout(t *testing.T) {
	p := New((&dialer{}).dial, Config{MaxOpen: 3})
	ctx := context.Background()

	var holders sync.Map
	var violations atomic.Int64

	var wg conc.WaitGroup
	for range 32 {
		wg.Go(func() {
			for range 50 {
				c, err := p.Acquire(ctx)
				if !assert.NoError(t, err) {
					return
				}
				if _, loaded := holders.LoadOrStore(c.id, struct{}{}); loaded {
					violations.Add(1)
				}
				time.Sleep(time.Microsecond)
				holders.Delete(c.id)
				p.Release(c, true)
			}
		})
	}
	wg.Wait()

	require.Zero(t, violations.Load())
	st := p.Stats()
	require.LessOrEqual(t, st.Open, 3)
	require.Zero(t, st.InUse)
}

func TestPool_Close(t *testing.T) {
	p := New((&dialer{}).dial, Config{MaxOpen: 1})
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	require.NoError(t, err)

	waitErr := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		waitErr <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)

	require.NoError(t, p.Close())
	require.ErrorIs(t, <-waitErr, ErrClosed)

	p.Release(c, true)
	require.True(t, c.closed.Load())

	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, ErrClosed)
}
