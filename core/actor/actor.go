package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	// OnPanic is called on the loop goroutine after a handler, async task or
	// lifecycle hook panicked. msgType is the label of the message being
	// handled, or the hook name ("started", "stopping", "stopped").
	OnPanic func(recovered any, stack []byte, msgType string)

	// Starter is implemented by actors that want to run code on the loop
	// goroutine before the first message is handled.
	Starter[A any] interface {
		Started(ctx *Context[A])
	}

	// Stopper is implemented by actors that want to run code when the loop
	// is about to stop. The mailbox is already closed, so sends made from the
	// hook fail with ErrDisconnected; queued messages are discarded after it.
	Stopper[A any] interface {
		Stopping(ctx *Context[A])
	}

	// Finalizer is implemented by actors that want to run code after the loop
	// stopped and all scheduled tasks finished.
	Finalizer interface {
		Stopped()
	}
)

// AsyncMode selects how the loop drives the work returned by asynchronous
// handlers.
type AsyncMode int

const (
	// AsyncSequential runs each async task to completion before the next
	// message is handled.
	AsyncSequential AsyncMode = iota
	// AsyncConcurrent hands async tasks to the actor's scheduler and moves on
	// to the next message. Options.MaxConcurrentTasks bounds the tasks running
	// at the same time.
	AsyncConcurrent
)

func (m AsyncMode) String() string {
	switch m {
	case AsyncSequential:
		return "sequential"
	case AsyncConcurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("AsyncMode(%d)", int(m))
	}
}

// ---- control messages (internal) ----

type ctrlKind int

const (
	ctrlPause ctrlKind = iota
	ctrlResume
	ctrlEnableStep
	ctrlStep
)

type ctrlMsg struct {
	kind ctrlKind
}

// Options configures a loop started with [Start] or [Spawn]. The zero value
// is usable.
type Options struct {
	// ID identifies the actor in logs and metrics. Generated when empty.
	ID string
	// ControlSize is the buffer of the pause/resume/step control channel.
	// Defaults to 16.
	ControlSize int
	// Context bounds the actor's lifetime.
	Context context.Context
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// OnPanic defaults to logging the panic at Error level.
	OnPanic OnPanic
	// Metrics defaults to NopActorMetrics().
	Metrics ActorMetrics
	// AsyncMode defaults to AsyncSequential.
	AsyncMode AsyncMode
	// MaxConcurrentTasks caps the tasks run concurrently by the scheduler,
	// both async handler tasks in AsyncConcurrent mode and Context.Schedule.
	// If 0 or negative, 32 is used.
	MaxConcurrentTasks int
}

// Loop owns the consumer side of an actor's mailbox: it pops envelopes one at
// a time and dispatches them against the actor value.
type Loop[A any] struct {
	id    string
	actor A
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mb   *mailbox[A]
	addr *Address[A]
	hc   *Context[A]

	control  chan ctrlMsg
	stop     chan struct{}
	stopOnce sync.Once

	mode    AsyncMode
	sched   Scheduler
	onPanic OnPanic
	metrics ActorMetrics
}

// Start starts a loop for a and returns it. a is only ever accessed from the
// loop goroutine (and from async tasks in AsyncConcurrent mode).
func Start[A any](a A, opt Options) *Loop[A] {
	if opt.ID == "" {
		opt.ID = "actor-" + gonanoid.Must(8)
	}
	if opt.ControlSize == 0 {
		opt.ControlSize = 16
	}
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Metrics == nil {
		opt.Metrics = NopActorMetrics()
	}
	if opt.MaxConcurrentTasks <= 0 {
		opt.MaxConcurrentTasks = 32
	}

	log := opt.Logger.With(slog.String("actor", opt.ID))

	if opt.OnPanic == nil {
		opt.OnPanic = func(recovered any, stack []byte, msgType string) {
			log.Error("actor panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)), slog.String("msg", msgType))
		}
	}

	ctx, cancel := context.WithCancel(opt.Context)
	mb := newMailbox[A](opt.ID, opt.Metrics)

	l := &Loop[A]{
		id:      opt.ID,
		actor:   a,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		mb:      mb,
		addr:    newAddress(mb),
		control: make(chan ctrlMsg, opt.ControlSize),
		stop:    make(chan struct{}),
		mode:    opt.AsyncMode,
		sched:   NewSchedulerWithMetrics(ctx, opt.MaxConcurrentTasks, opt.ID, opt.Metrics, log),
		onPanic: opt.OnPanic,
		metrics: opt.Metrics,
	}
	l.hc = &Context[A]{
		Context: ctx,
		id:      opt.ID,
		log:     log,
		self:    newWeakAddress(mb),
		sched:   l.sched,
		stop:    l.requestStop,
	}

	go l.run()
	return l
}

// Spawn starts a loop for a and returns its address.
func Spawn[A any](a A, opt Options) *Address[A] {
	return Start(a, opt).Address()
}

// ID returns the actor's ID.
func (l *Loop[A]) ID() string { return l.id }

// Address returns the strong address created with the loop. Releasing it and
// all of its clones lets the actor stop once its mailbox is drained.
func (l *Loop[A]) Address() *Address[A] { return l.addr }

// Done is closed when the loop has exited.
func (l *Loop[A]) Done() <-chan struct{} { return l.mb.done }

// Stop stops the loop after the message in progress and waits for it to
// exit. Queued messages are discarded. Stop must not be called from a
// handler; use Context.Stop there.
func (l *Loop[A]) Stop() {
	l.requestStop()
	<-l.mb.done
}

// Pause prevents further processing until Resume or Step.
func (l *Loop[A]) Pause() error { return l.sendCtrl(ctrlPause) }

// Resume enables continuous processing (disables step mode).
func (l *Loop[A]) Resume() error { return l.sendCtrl(ctrlResume) }

// EnableStepMode makes the loop process only when Step is called.
func (l *Loop[A]) EnableStepMode() error { return l.sendCtrl(ctrlEnableStep) }

// Step permits exactly one message to be processed.
func (l *Loop[A]) Step() error { return l.sendCtrl(ctrlStep) }

// ---- internals ----

func (l *Loop[A]) requestStop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Loop[A]) isStopped() bool {
	select {
	case <-l.stop:
		return true
	case <-l.mb.done:
		return true
	default:
		return false
	}
}

func (l *Loop[A]) sendCtrl(k ctrlKind) error {
	if l.isStopped() {
		return ErrStopped
	}
	select {
	case <-l.stop:
		return ErrStopped
	case <-l.mb.done:
		return ErrStopped
	case l.control <- ctrlMsg{kind: k}:
		return nil
	}
}

func (l *Loop[A]) run() {
	defer l.shutdown()

	// execution state lives only in this goroutine
	paused := false
	stepMode := false
	permit := 1 // when >0, the loop may process one message; in run mode it is renewed

	apply := func(c ctrlMsg) {
		switch c.kind {
		case ctrlPause:
			paused = true
			permit = 0
		case ctrlResume:
			paused = false
			stepMode = false
			if permit == 0 {
				permit = 1
			}
		case ctrlEnableStep:
			stepMode = true
			paused = true
			permit = 0
		case ctrlStep:
			// allow exactly one processing opportunity
			permit++
		}
	}

	if s, ok := any(l.actor).(Starter[A]); ok {
		l.safeHook("started", func() { s.Started(l.hc) })
	}

	for {
		// control has priority
		for drained := false; !drained; {
			select {
			case c := <-l.control:
				apply(c)
			default:
				drained = true
			}
		}

		select {
		case <-l.stop:
			return
		case <-l.ctx.Done():
			return
		default:
		}

		if permit <= 0 {
			select {
			case <-l.stop:
				return
			case <-l.ctx.Done():
				return
			case c := <-l.control:
				apply(c)
			}
			continue
		}

		env, ok := l.mb.pop()
		if !ok {
			if l.mb.isClosed() {
				// closed under the write lock, so the queue is final now
				if env, ok = l.mb.pop(); !ok {
					l.log.Debug("all addresses released, stopping")
					return
				}
			} else {
				select {
				case <-l.stop:
					return
				case <-l.ctx.Done():
					return
				case c := <-l.control:
					apply(c)
				case <-l.mb.notify:
				}
				continue
			}
		}

		permit--
		l.dispatch(env)

		if !paused && !stepMode {
			permit++
		}
	}
}

func (l *Loop[A]) dispatch(env Envelope[A]) {
	mt := env.MessageType()
	timer := l.metrics.MessageDuration(mt)

	task, ok := l.safeDispatch(env, mt)
	if ok && task != nil {
		if l.mode == AsyncConcurrent {
			l.sched.Schedule(task)
		} else {
			ok = l.safeRun(task, mt)
		}
	}

	timer.ObserveDuration()
	l.metrics.MessageProcessed(mt, ok)
	l.metrics.MailboxDepth(l.id, l.mb.len())
}

// safeDispatch contains handler panics: the envelope is discarded so a waiting
// caller sees ErrDisconnected, and the loop keeps running.
func (l *Loop[A]) safeDispatch(env Envelope[A], mt string) (task Task, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			env.Discard()
			l.metrics.MessagePanic(mt)
			l.onPanic(r, debug.Stack(), mt)
			task, ok = nil, false
		}
	}()
	return env.Dispatch(l.actor, l.hc), true
}

func (l *Loop[A]) safeRun(t Task, mt string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.Abort()
			l.metrics.MessagePanic(mt)
			l.onPanic(r, debug.Stack(), mt)
			ok = false
		}
	}()
	t.Run(l.ctx)
	return true
}

func (l *Loop[A]) safeHook(name string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.onPanic(r, debug.Stack(), name)
		}
	}()
	f()
}

func (l *Loop[A]) shutdown() {
	defer close(l.mb.done)

	// sends racing the shutdown fail from here on
	l.mb.close()

	if s, ok := any(l.actor).(Stopper[A]); ok {
		l.safeHook("stopping", func() { s.Stopping(l.hc) })
	}

	dropped := 0
	for {
		env, ok := l.mb.pop()
		if !ok {
			break
		}
		env.Discard()
		l.metrics.MessageDropped(env.MessageType())
		dropped++
	}
	if dropped > 0 {
		l.log.Debug("discarded queued messages", slog.Int("count", dropped))
	}
	l.metrics.MailboxDepth(l.id, 0)

	l.cancel()
	l.sched.Wait()

	if f, ok := any(l.actor).(Finalizer); ok {
		l.safeHook("stopped", f.Stopped)
	}
	l.log.Debug("actor stopped")
}
