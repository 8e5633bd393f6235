package actor

import (
	"sync"
	"sync/atomic"
)

// node is an element of the mailbox list.
type node[A any] struct {
	next atomic.Pointer[node[A]]
	env  Envelope[A]
}

// mailbox is an unbounded multi-producer, single-consumer FIFO of envelopes.
//
// Producers link new nodes with an atomic swap of the tail and never block on
// queue depth. Only the actor loop pops. The read lock taken by push only
// orders pushes against close: once close returns, every accepted envelope is
// linked and no further push succeeds.
type mailbox[A any] struct {
	id      string
	metrics ActorMetrics

	mu     sync.RWMutex
	closed atomic.Bool

	head *node[A] // consumer only
	tail atomic.Pointer[node[A]]

	depth  atomic.Int64
	notify chan struct{}

	// refs counts the strong addresses; the mailbox closes when it drops to 0.
	refs atomic.Int64
	// done is closed when the loop owning the consumer side has exited.
	done chan struct{}
}

func newMailbox[A any](id string, m ActorMetrics) *mailbox[A] {
	stub := &node[A]{}
	mb := &mailbox[A]{
		id:      id,
		metrics: m,
		head:    stub,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	mb.tail.Store(stub)
	return mb
}

// push appends env. It returns false once the mailbox is closed.
func (m *mailbox[A]) push(env Envelope[A]) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed.Load() {
		return false
	}

	n := &node[A]{env: env}
	m.depth.Add(1)
	prev := m.tail.Swap(n)
	prev.next.Store(n)
	m.wake()
	return true
}

// pop removes the oldest envelope. It must only be called by the consumer.
// An empty result may also mean a push is half way through linking; that
// producer wakes the consumer when it is done.
func (m *mailbox[A]) pop() (Envelope[A], bool) {
	next := m.head.next.Load()
	if next == nil {
		return nil, false
	}
	env := next.env
	next.env = nil
	m.head = next
	m.depth.Add(-1)
	return env, true
}

// close stops accepting envelopes and reports whether this call closed it.
func (m *mailbox[A]) close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Swap(true) {
		return false
	}
	m.wake()
	return true
}

func (m *mailbox[A]) isClosed() bool { return m.closed.Load() }

func (m *mailbox[A]) len() int { return int(m.depth.Load()) }

func (m *mailbox[A]) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}
