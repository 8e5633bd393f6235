package actor

import (
	"context"
	"sync/atomic"

	"github.com/luckysori/xtra/internal/oneshot"
)

type (
	// Envelope is a type-erased, single-use unit of work for actor A. It is
	// what the mailbox stores: the message and, for requests, the producing
	// half of the reply channel. The concrete variant is fixed when the
	// envelope is built, so dispatch needs no type switch.
	Envelope[A any] interface {
		// Dispatch invokes the message's handler on a. Asynchronous variants
		// return the suspended remainder of the work, which the caller must
		// drive; synchronous variants return nil. Dispatch panics when called
		// a second time.
		Dispatch(a A, ctx *Context[A]) Task
		// Discard releases an envelope that will never be dispatched. Requests
		// resolve with ErrDisconnected.
		Discard()
		// MessageType is the log and metrics label of the carried message.
		MessageType() string
	}

	// Task is the suspended remainder of an asynchronous dispatch. Exactly
	// one of Run or Abort is called, except that Abort also follows a Run
	// that panicked.
	Task interface {
		Run(ctx context.Context)
		Abort()
	}
)

type taskFunc struct {
	run   func(ctx context.Context)
	abort func()
}

func (t taskFunc) Run(ctx context.Context) { t.run(ctx) }

func (t taskFunc) Abort() {
	if t.abort != nil {
		t.abort()
	}
}

type dispatchOnce struct{ used atomic.Bool }

func (d *dispatchOnce) claim() {
	if d.used.Swap(true) {
		panic("actor: envelope dispatched twice")
	}
}

// ---- sync, fire-and-forget ----

type syncNotify[A any, R any] struct {
	dispatchOnce
	msg Message[A, R]
}

func newSyncNotify[A any, R any](msg Message[A, R]) *syncNotify[A, R] {
	return &syncNotify[A, R]{msg: msg}
}

func (e *syncNotify[A, R]) Dispatch(a A, ctx *Context[A]) Task {
	e.claim()
	e.msg.Handle(ctx, a)
	return nil
}

func (e *syncNotify[A, R]) Discard()            {}
func (e *syncNotify[A, R]) MessageType() string { return msgTypeOf(e.msg) }

// ---- async, fire-and-forget ----

type asyncNotify[A any, R any] struct {
	dispatchOnce
	msg AsyncMessage[A, R]
}

func newAsyncNotify[A any, R any](msg AsyncMessage[A, R]) *asyncNotify[A, R] {
	return &asyncNotify[A, R]{msg: msg}
}

func (e *asyncNotify[A, R]) Dispatch(a A, ctx *Context[A]) Task {
	e.claim()
	fut := e.msg.HandleAsync(ctx, a)
	if fut == nil {
		return nil
	}
	return taskFunc{run: func(ctx context.Context) { fut(ctx) }}
}

func (e *asyncNotify[A, R]) Discard()            {}
func (e *asyncNotify[A, R]) MessageType() string { return msgTypeOf(e.msg) }

// ---- sync, request-response ----

type syncRequest[A any, R any] struct {
	dispatchOnce
	msg Message[A, R]
	tx  *oneshot.Sender[R]
}

func newSyncRequest[A any, R any](msg Message[A, R]) (*syncRequest[A, R], *oneshot.Receiver[R]) {
	tx, rx := oneshot.New[R]()
	return &syncRequest[A, R]{msg: msg, tx: tx}, rx
}

// Dispatch runs the handler even if nobody waits for the reply any more;
// the send is then a no-op.
func (e *syncRequest[A, R]) Dispatch(a A, ctx *Context[A]) Task {
	e.claim()
	e.tx.Send(e.msg.Handle(ctx, a))
	return nil
}

func (e *syncRequest[A, R]) Discard()            { e.tx.Close() }
func (e *syncRequest[A, R]) MessageType() string { return msgTypeOf(e.msg) }

// ---- async, request-response ----

type asyncRequest[A any, R any] struct {
	dispatchOnce
	msg AsyncMessage[A, R]
	tx  *oneshot.Sender[R]
}

func newAsyncRequest[A any, R any](msg AsyncMessage[A, R]) (*asyncRequest[A, R], *oneshot.Receiver[R]) {
	tx, rx := oneshot.New[R]()
	return &asyncRequest[A, R]{msg: msg, tx: tx}, rx
}

func (e *asyncRequest[A, R]) Dispatch(a A, ctx *Context[A]) Task {
	e.claim()
	fut := e.msg.HandleAsync(ctx, a)
	if fut == nil {
		var z R
		e.tx.Send(z)
		return nil
	}
	return taskFunc{
		run:   func(ctx context.Context) { e.tx.Send(fut(ctx)) },
		abort: e.tx.Close,
	}
}

func (e *asyncRequest[A, R]) Discard()            { e.tx.Close() }
func (e *asyncRequest[A, R]) MessageType() string { return msgTypeOf(e.msg) }
