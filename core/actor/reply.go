package actor

import (
	"context"
	"errors"

	"github.com/luckysori/xtra/internal/oneshot"
)

// Reply is the pending result of a request made with [Send] or [SendAsync].
//
// Abandoning a Reply, or giving up on Await through ctx, only drops the
// caller's interest: the handler still runs to completion.
type Reply[R any] struct {
	rx *oneshot.Receiver[R]
}

func newReply[R any](rx *oneshot.Receiver[R]) *Reply[R] { return &Reply[R]{rx: rx} }

func disconnectedReply[R any]() *Reply[R] { return newReply(oneshot.Closed[R]()) }

// Await blocks until the handler's result is available, the actor
// disconnects (ErrDisconnected) or ctx ends (ctx.Err()). Await can be called
// again after a context error.
func (r *Reply[R]) Await(ctx context.Context) (R, error) {
	v, err := r.rx.Recv(ctx)
	if errors.Is(err, oneshot.ErrClosed) {
		return v, ErrDisconnected
	}
	return v, err
}

// Wait is Await without a deadline.
func (r *Reply[R]) Wait() (R, error) { return r.Await(context.Background()) }

// Done is closed once Await would return without blocking.
func (r *Reply[R]) Done() <-chan struct{} { return r.rx.Done() }
