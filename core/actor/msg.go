package actor

import (
	"context"

	"github.com/luckysori/xtra/internal/reflector"
)

type (
	// Message is a value actor A handles synchronously, producing R.
	//
	// Handle is the static binding from the message type to A's handling
	// logic: it runs on the actor's goroutine with exclusive access to a and
	// usually just forwards to a method of A. Failures belong in R.
	Message[A any, R any] interface {
		Handle(ctx *Context[A], a A) R
	}

	// AsyncMessage is a value actor A handles asynchronously, producing R.
	//
	// HandleAsync runs on the actor's goroutine and returns the suspended
	// remainder of the work. The loop drives the returned [Async] according
	// to [Options.AsyncMode]; in [AsyncConcurrent] mode it runs on another
	// goroutine and must not touch a without synchronization.
	AsyncMessage[A any, R any] interface {
		HandleAsync(ctx *Context[A], a A) Async[R]
	}

	// Async is a suspended computation producing R. A nil Async produces the
	// zero value of R.
	Async[R any] func(ctx context.Context) R

	// Func adapts a closure to a [Message].
	Func[A any, R any] func(ctx *Context[A], a A) R

	// AsyncFunc adapts a closure to an [AsyncMessage].
	AsyncFunc[A any, R any] func(ctx *Context[A], a A) Async[R]
)

func (f Func[A, R]) Handle(ctx *Context[A], a A) R { return f(ctx, a) }

func (f AsyncFunc[A, R]) HandleAsync(ctx *Context[A], a A) Async[R] { return f(ctx, a) }

// Ready returns an Async that produces v without doing any work.
func Ready[R any](v R) Async[R] {
	return func(context.Context) R { return v }
}

// msgTyper lets a message choose its own label for logs and metrics.
type msgTyper interface{ MsgType() string }

func msgTypeOf(x any) string {
	if mt, ok := x.(msgTyper); ok {
		return mt.MsgType()
	}
	return reflector.TypeInfoOf(x).Short
}
