package actor

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Address is a handle on the send side of an actor's mailbox and the only way
// messages reach the actor. It is safe for concurrent use.
//
// Addresses returned by [Spawn], [Loop.Address] and [Address.Clone] are
// strong: the actor keeps accepting messages while at least one of them is
// unreleased. After the last one is released, the actor handles what is
// already queued and stops. The address from [Context.Address] is weak and
// does not keep the actor alive.
type Address[A any] struct {
	mb       *mailbox[A]
	weak     bool
	released atomic.Bool
}

func newAddress[A any](mb *mailbox[A]) *Address[A] {
	mb.refs.Add(1)
	return &Address[A]{mb: mb}
}

func newWeakAddress[A any](mb *mailbox[A]) *Address[A] {
	return &Address[A]{mb: mb, weak: true}
}

// ID returns the actor's ID.
func (a *Address[A]) ID() string { return a.mb.id }

// Clone returns a new strong address for the same actor. Cloning a released
// address returns a released address.
func (a *Address[A]) Clone() *Address[A] {
	c := newAddress(a.mb)
	if a.released.Load() {
		c.Release()
	}
	return c
}

// Release gives up this address. Sends through it fail with ErrDisconnected
// afterwards. Releasing twice, or releasing a weak address, is a no-op.
func (a *Address[A]) Release() {
	if a.weak || a.released.Swap(true) {
		return
	}
	if a.mb.refs.Add(-1) == 0 {
		a.mb.close()
	}
}

// IsConnected reports whether sends through a can currently succeed.
func (a *Address[A]) IsConnected() bool {
	return !a.released.Load() && !a.mb.isClosed()
}

// Done is closed when the actor's loop has exited.
func (a *Address[A]) Done() <-chan struct{} { return a.mb.done }

func (a *Address[A]) enqueue(env Envelope[A]) error {
	if a.released.Load() || !a.mb.push(env) {
		a.mb.metrics.SendRejected(env.MessageType())
		return ErrDisconnected
	}
	return nil
}

func mustMessage(msg any) {
	if msg == nil {
		panic("actor: nil message")
	}
}

// DoSend enqueues msg for synchronous handling without waiting for a result.
// It fails with ErrDisconnected when the actor is not reachable.
func DoSend[A any, R any](addr *Address[A], msg Message[A, R]) error {
	mustMessage(msg)
	return addr.enqueue(newSyncNotify(msg))
}

// DoSendAsync enqueues msg for asynchronous handling without waiting for a
// result. It fails with ErrDisconnected when the actor is not reachable.
func DoSendAsync[A any, R any](addr *Address[A], msg AsyncMessage[A, R]) error {
	mustMessage(msg)
	return addr.enqueue(newAsyncNotify(msg))
}

// Send enqueues msg for synchronous handling and returns its pending result.
// If the actor is not reachable the Reply is already resolved with
// ErrDisconnected.
func Send[A any, R any](addr *Address[A], msg Message[A, R]) *Reply[R] {
	mustMessage(msg)
	env, rx := newSyncRequest(msg)
	if err := addr.enqueue(env); err != nil {
		return disconnectedReply[R]()
	}
	return newReply(rx)
}

// SendAsync enqueues msg for asynchronous handling and returns its pending
// result. If the actor is not reachable the Reply is already resolved with
// ErrDisconnected.
func SendAsync[A any, R any](addr *Address[A], msg AsyncMessage[A, R]) *Reply[R] {
	mustMessage(msg)
	env, rx := newAsyncRequest(msg)
	if err := addr.enqueue(env); err != nil {
		return disconnectedReply[R]()
	}
	return newReply(rx)
}

// Ask sends msg and waits for the result or for ctx to end.
//
//	n, err := actor.Ask(ctx, addr, GetCount{})
func Ask[A any, R any](ctx context.Context, addr *Address[A], msg Message[A, R]) (R, error) {
	return Send(addr, msg).Await(ctx)
}

// AskAsync is [Ask] for asynchronous handlers.
func AskAsync[A any, R any](ctx context.Context, addr *Address[A], msg AsyncMessage[A, R]) (R, error) {
	return SendAsync(addr, msg).Await(ctx)
}

// LogValue implements slog.LogValuer: an address logs as its actor ID and
// whether it is connected.
func (a *Address[A]) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", a.mb.id),
		slog.Bool("connected", a.IsConnected()),
	)
}
