package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fixtures ----

type pinger struct {
	seen []int
	n    int
	hits atomic.Int32
}

type (
	ping     struct{}
	record   struct{ N int }
	snapshot struct{}
	boom     struct{}
	quit     struct{}

	// block holds the loop until release is closed.
	block struct {
		started chan struct{}
		release chan struct{}
	}

	// asyncAdd adds N to the counter inside its async task.
	asyncAdd struct{ N int }

	// wait blocks its async task until release is closed or the actor stops.
	wait struct {
		started chan struct{}
		release chan struct{}
	}
)

func (ping) Handle(_ *Context[*pinger], p *pinger) uint32 {
	p.hits.Add(1)
	return 42
}

func (m record) Handle(_ *Context[*pinger], p *pinger) int {
	p.seen = append(p.seen, m.N)
	return len(p.seen)
}

func (snapshot) Handle(_ *Context[*pinger], p *pinger) []int {
	return append([]int(nil), p.seen...)
}

func (boom) Handle(_ *Context[*pinger], _ *pinger) int {
	panic("boom")
}

func (quit) Handle(ctx *Context[*pinger], _ *pinger) struct{} {
	ctx.Stop()
	return struct{}{}
}

func (m block) Handle(_ *Context[*pinger], _ *pinger) int {
	close(m.started)
	<-m.release
	return 0
}

func (m asyncAdd) HandleAsync(_ *Context[*pinger], p *pinger) Async[int] {
	return func(ctx context.Context) int {
		time.Sleep(5 * time.Millisecond)
		p.n += m.N
		return p.n
	}
}

func (m wait) HandleAsync(_ *Context[*pinger], _ *pinger) Async[string] {
	return func(ctx context.Context) string {
		if m.started != nil {
			close(m.started)
		}
		select {
		case <-m.release:
			return "released"
		case <-ctx.Done():
			return "cancelled"
		}
	}
}

func newBlock() block {
	return block{started: make(chan struct{}), release: make(chan struct{})}
}

func newTestLoop(t *testing.T, opts ...func(*Options)) (*Loop[*pinger], *pinger) {
	t.Helper()
	p := &pinger{}
	opt := Options{Context: t.Context()}
	for _, o := range opts {
		o(&opt)
	}
	l := Start(p, opt)
	t.Cleanup(l.Stop)
	return l, p
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

// ---- tests ----

func TestActor_send_ping(t *testing.T) {
	l, _ := newTestLoop(t)

	res, err := Send(l.Address(), ping{}).Await(t.Context())
	require.NoError(t, err)
	require.Equal(t, uint32(42), res)
}

func TestActor_do_send_runs_handler(t *testing.T) {
	l, p := newTestLoop(t)
	addr := l.Address()

	require.NoError(t, DoSend(addr, ping{}))

	// a request queued behind it observes the effect
	_, err := Ask(t.Context(), addr, snapshot{})
	require.NoError(t, err)
	require.Equal(t, int32(1), p.hits.Load())
}

func TestActor_dropped_reply_still_handled(t *testing.T) {
	l, _ := newTestLoop(t)
	addr := l.Address()

	_ = Send(addr, record{N: 1})

	seen, err := Ask(t.Context(), addr, snapshot{})
	require.NoError(t, err)
	require.Equal(t, []int{1}, seen)
}

func TestActor_order(t *testing.T) {
	l, _ := newTestLoop(t)
	addr := l.Address()

	for i := range 100 {
		require.NoError(t, DoSend(addr, record{N: i}))
	}

	seen, err := Ask(t.Context(), addr, snapshot{})
	require.NoError(t, err)
	require.Len(t, seen, 100)
	for i, n := range seen {
		require.Equal(t, i, n)
	}
}

func TestActor_func_message(t *testing.T) {
	l, _ := newTestLoop(t)

	res, err := Ask(t.Context(), l.Address(), Func[*pinger, string](func(ctx *Context[*pinger], p *pinger) string {
		return ctx.ID()
	}))
	require.NoError(t, err)
	require.Equal(t, l.ID(), res)
}

func TestActor_panic_contained(t *testing.T) {
	var (
		mu     sync.Mutex
		panics []string
	)
	l, _ := newTestLoop(t, func(o *Options) {
		o.OnPanic = func(recovered any, stack []byte, msgType string) {
			mu.Lock()
			defer mu.Unlock()
			panics = append(panics, msgType)
		}
	})
	addr := l.Address()

	_, err := Ask(t.Context(), addr, boom{})
	require.ErrorIs(t, err, ErrDisconnected)

	// the actor keeps running
	res, err := Ask(t.Context(), addr, ping{})
	require.NoError(t, err)
	require.Equal(t, uint32(42), res)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"actor.boom"}, panics)
}

func TestActor_stop_mid_handling(t *testing.T) {
	l, _ := newTestLoop(t)
	addr := l.Address()

	b := newBlock()
	inFlight := Send(addr, b)
	waitDone(t, b.started)

	queued := Send(addr, record{N: 1})
	l.requestStop()
	close(b.release)

	// the message being handled completes, the queued one is dropped
	res, err := inFlight.Await(t.Context())
	require.NoError(t, err)
	require.Equal(t, 0, res)

	_, err = queued.Await(t.Context())
	require.ErrorIs(t, err, ErrDisconnected)

	waitDone(t, l.Done())
	require.ErrorIs(t, DoSend(addr, ping{}), ErrDisconnected)
}

func TestActor_context_stop(t *testing.T) {
	l, _ := newTestLoop(t)
	addr := l.Address()

	b := newBlock()
	require.NoError(t, DoSend(addr, b))
	waitDone(t, b.started)

	stopped := Send(addr, quit{})
	after := Send(addr, ping{})
	close(b.release)

	_, err := stopped.Await(t.Context())
	require.NoError(t, err)
	_, err = after.Await(t.Context())
	require.ErrorIs(t, err, ErrDisconnected)

	waitDone(t, l.Done())
	require.False(t, addr.IsConnected())
}

func TestActor_context_cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	addr := Spawn(&pinger{}, Options{Context: ctx})

	require.NoError(t, DoSend(addr, ping{}))
	cancel()
	waitDone(t, addr.Done())

	require.ErrorIs(t, DoSend(addr, ping{}), ErrDisconnected)
	_, err := Send(addr, ping{}).Wait()
	require.ErrorIs(t, err, ErrDisconnected)
}

func TestActor_release_all_drains_then_stops(t *testing.T) {
	p := &pinger{}
	addr := Spawn(p, Options{Context: t.Context()})
	clone := addr.Clone()

	for range 10 {
		require.NoError(t, DoSend(clone, ping{}))
	}
	addr.Release()
	require.True(t, clone.IsConnected())
	clone.Release()

	waitDone(t, addr.Done())
	require.Equal(t, int32(10), p.hits.Load())
}

func TestActor_hooks(t *testing.T) {
	events := make(chan string, 3)
	a := &hooked{events: events}
	l := Start(a, Options{Context: t.Context()})

	require.Equal(t, "started", <-events)
	l.Stop()
	require.Equal(t, "stopping", <-events)
	require.Equal(t, "stopped", <-events)
}

type hooked struct{ events chan string }

func (h *hooked) Started(*Context[*hooked])  { h.events <- "started" }
func (h *hooked) Stopping(*Context[*hooked]) { h.events <- "stopping" }
func (h *hooked) Stopped()                   { h.events <- "stopped" }

func TestActor_pause_step_resume(t *testing.T) {
	l, _ := newTestLoop(t)
	addr := l.Address()

	b := newBlock()
	require.NoError(t, DoSend(addr, b))
	waitDone(t, b.started)

	// applied once the blocking handler returns
	require.NoError(t, l.Pause())
	r1 := Send(addr, record{N: 1})
	r2 := Send(addr, record{N: 2})
	close(b.release)

	select {
	case <-r1.Done():
		t.Fatal("paused loop processed a message")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, l.Step())
	n, err := r1.Await(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	select {
	case <-r2.Done():
		t.Fatal("step processed more than one message")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, l.Resume())
	n, err = r2.Await(t.Context())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestActor_control_after_stop(t *testing.T) {
	for range 100 {
		l := Start(&pinger{}, Options{Context: t.Context()})
		l.Stop()
		require.ErrorIs(t, l.Pause(), ErrStopped)
		require.ErrorIs(t, l.Resume(), ErrStopped)
		require.ErrorIs(t, l.EnableStepMode(), ErrStopped)
		require.ErrorIs(t, l.Step(), ErrStopped)
	}
}

// stopSender sends itself a message from its Stopping hook.
type stopSender struct {
	handled atomic.Bool
	sendErr chan error
}

type late struct{}

func (late) Handle(_ *Context[*stopSender], s *stopSender) struct{} {
	s.handled.Store(true)
	return struct{}{}
}

func (s *stopSender) Stopping(ctx *Context[*stopSender]) {
	s.sendErr <- DoSend(ctx.Address(), late{})
}

func TestActor_send_during_stopping(t *testing.T) {
	s := &stopSender{sendErr: make(chan error, 1)}
	l := Start(s, Options{Context: t.Context()})
	addr := l.Address().Clone()

	l.Stop()

	require.ErrorIs(t, <-s.sendErr, ErrDisconnected)
	require.False(t, s.handled.Load())
	require.ErrorIs(t, DoSend(addr, late{}), ErrDisconnected)
}

func TestActor_async_sequential(t *testing.T) {
	l, _ := newTestLoop(t)
	addr := l.Address()

	require.NoError(t, DoSendAsync(addr, asyncAdd{N: 2}))
	r := SendAsync(addr, asyncAdd{N: 3})

	// the sync handler queued after the async tasks sees both effects
	n, err := Ask(t.Context(), addr, Func[*pinger, int](func(_ *Context[*pinger], p *pinger) int { return p.n }))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	n, err = r.Await(t.Context())
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestActor_async_concurrent(t *testing.T) {
	l, _ := newTestLoop(t, func(o *Options) { o.AsyncMode = AsyncConcurrent })
	addr := l.Address()

	w := wait{started: make(chan struct{}), release: make(chan struct{})}
	pending := SendAsync(addr, w)
	waitDone(t, w.started)

	// the loop is free while the task runs
	res, err := Ask(t.Context(), addr, ping{})
	require.NoError(t, err)
	require.Equal(t, uint32(42), res)

	close(w.release)
	s, err := pending.Await(t.Context())
	require.NoError(t, err)
	require.Equal(t, "released", s)
}

func TestActor_async_concurrent_stop_aborts_waiting(t *testing.T) {
	l, _ := newTestLoop(t, func(o *Options) {
		o.AsyncMode = AsyncConcurrent
		o.MaxConcurrentTasks = 1
	})
	addr := l.Address()

	running := wait{started: make(chan struct{}), release: make(chan struct{})}
	first := SendAsync(addr, running)
	waitDone(t, running.started)

	second := SendAsync(addr, wait{release: make(chan struct{})})
	// make sure the second envelope was dispatched and its task is waiting
	_, err := Ask(t.Context(), addr, ping{})
	require.NoError(t, err)

	l.Stop()

	s, err := first.Await(t.Context())
	require.NoError(t, err)
	require.Equal(t, "cancelled", s)

	_, err = second.Await(t.Context())
	require.ErrorIs(t, err, ErrDisconnected)
}

func TestActor_async_nil(t *testing.T) {
	l, _ := newTestLoop(t)

	res, err := AskAsync(t.Context(), l.Address(), AsyncFunc[*pinger, int](func(*Context[*pinger], *pinger) Async[int] {
		return nil
	}))
	require.NoError(t, err)
	require.Zero(t, res)

	res, err = AskAsync(t.Context(), l.Address(), AsyncFunc[*pinger, int](func(*Context[*pinger], *pinger) Async[int] {
		return Ready(7)
	}))
	require.NoError(t, err)
	require.Equal(t, 7, res)
}

func TestActor_async_panic(t *testing.T) {
	l, _ := newTestLoop(t, func(o *Options) { o.OnPanic = func(any, []byte, string) {} })

	_, err := AskAsync(t.Context(), l.Address(), AsyncFunc[*pinger, int](func(*Context[*pinger], *pinger) Async[int] {
		return func(context.Context) int { panic("async boom") }
	}))
	require.ErrorIs(t, err, ErrDisconnected)
}

func TestActor_schedule(t *testing.T) {
	l, _ := newTestLoop(t)
	done := make(chan string, 1)

	require.NoError(t, DoSend(l.Address(), Func[*pinger, struct{}](func(ctx *Context[*pinger], _ *pinger) struct{} {
		id := ctx.ID()
		ctx.Schedule(func(context.Context) { done <- id })
		return struct{}{}
	})))

	select {
	case id := <-done:
		assert.Equal(t, l.ID(), id)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestActor_schedule_after_stop_aborts(t *testing.T) {
	l, _ := newTestLoop(t)

	hc, err := Ask(t.Context(), l.Address(), Func[*pinger, *Context[*pinger]](func(ctx *Context[*pinger], _ *pinger) *Context[*pinger] {
		return ctx
	}))
	require.NoError(t, err)
	l.Stop()

	var ran atomic.Bool
	hc.Schedule(func(context.Context) { ran.Store(true) })
	time.Sleep(10 * time.Millisecond)
	require.False(t, ran.Load())
}

func TestActor_reply_timeout_does_not_cancel(t *testing.T) {
	l, p := newTestLoop(t)
	addr := l.Address()

	b := newBlock()
	require.NoError(t, DoSend(addr, b))
	waitDone(t, b.started)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err := Send(addr, ping{}).Await(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	close(b.release)
	_, err = Ask(t.Context(), addr, snapshot{})
	require.NoError(t, err)
	require.Equal(t, int32(1), p.hits.Load())
}

func TestAsyncMode_String(t *testing.T) {
	assert.Equal(t, "sequential", AsyncSequential.String())
	assert.Equal(t, "concurrent", AsyncConcurrent.String())
	assert.Equal(t, "AsyncMode(7)", AsyncMode(7).String())
}

func BenchmarkActor_send(b *testing.B) {
	addr := Spawn(&pinger{}, Options{Context: b.Context()})
	defer addr.Release()

	for b.Loop() {
		if _, err := Send(addr, ping{}).Wait(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkActor_do_send(b *testing.B) {
	addr := Spawn(&pinger{}, Options{Context: b.Context()})
	defer addr.Release()

	for b.Loop() {
		_ = DoSend(addr, ping{})
	}
	_, _ = Send(addr, ping{}).Wait()
}
