package actor

import (
	"context"
	"log/slog"
)

// Context is passed to every handler of actor A. It embeds the actor's
// lifetime context, which is cancelled when the actor stops.
type Context[A any] struct {
	context.Context
	id    string
	log   *slog.Logger
	self  *Address[A]
	sched Scheduler
	stop  func()
}

// ID returns the actor's ID.
func (c *Context[A]) ID() string { return c.id }

// Log returns the actor's logger.
func (c *Context[A]) Log() *slog.Logger { return c.log }

// Address returns a weak address of the actor itself. It can be used to send
// the actor messages but does not keep it alive.
func (c *Context[A]) Address() *Address[A] { return c.self }

// Stop asks the loop to stop once the current message is handled. Messages
// still queued resolve with ErrDisconnected.
func (c *Context[A]) Stop() { c.stop() }

// Schedule runs f in the background on the actor's scheduler, outside the
// mailbox. f must not touch actor state without synchronization. The loop
// waits for scheduled work when it stops.
func (c *Context[A]) Schedule(f func(ctx context.Context)) {
	c.sched.Schedule(taskFunc{run: f})
}
