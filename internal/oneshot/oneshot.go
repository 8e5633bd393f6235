// Package oneshot provides a single-value, single-producer channel.
//
// A channel is created as a [Sender] / [Receiver] pair. The sender either
// delivers exactly one value or is closed without one; the receiver observes
// which of the two happened. Sending to a channel nobody is receiving from is
// a harmless no-op.
package oneshot

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by [Receiver.Recv] when the sender was closed
// without delivering a value.
var ErrClosed = errors.New("oneshot: sender closed without value")

type state[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	ok   bool
}

// Sender is the producing half of a one-shot channel.
type Sender[T any] struct{ s *state[T] }

// Receiver is the consuming half of a one-shot channel.
type Receiver[T any] struct{ s *state[T] }

// New creates a connected Sender / Receiver pair.
func New[T any]() (*Sender[T], *Receiver[T]) {
	s := &state[T]{done: make(chan struct{})}
	return &Sender[T]{s: s}, &Receiver[T]{s: s}
}

// Closed returns a Receiver whose sender is already closed.
func Closed[T any]() *Receiver[T] {
	tx, rx := New[T]()
	tx.Close()
	return rx
}

// Send delivers v. It reports whether v was accepted; only the first Send
// (or Close) on a channel takes effect.
func (tx *Sender[T]) Send(v T) (sent bool) {
	tx.s.once.Do(func() {
		tx.s.val = v
		tx.s.ok = true
		close(tx.s.done)
		sent = true
	})
	return sent
}

// Close closes the channel without a value. Closing after Send is a no-op.
func (tx *Sender[T]) Close() {
	tx.s.once.Do(func() { close(tx.s.done) })
}

// Done is closed once a value was sent or the sender was closed.
func (rx *Receiver[T]) Done() <-chan struct{} { return rx.s.done }

// Recv waits for the value. It returns [ErrClosed] when the sender was closed
// without one, or ctx.Err() when ctx ends first. Recv may be called again
// after a context error and by several goroutines.
func (rx *Receiver[T]) Recv(ctx context.Context) (T, error) {
	select {
	case <-rx.s.done:
		return rx.result()
	default:
	}

	select {
	case <-rx.s.done:
		return rx.result()
	case <-ctx.Done():
		var z T
		return z, ctx.Err()
	}
}

func (rx *Receiver[T]) result() (T, error) {
	if !rx.s.ok {
		var z T
		return z, ErrClosed
	}
	return rx.s.val, nil
}
