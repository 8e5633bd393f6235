// Package actor implements typed message dispatch for in-process actors.
//
// Many message types, each with its own result type, travel through one
// unbounded mailbox per actor. Each message is wrapped in an [Envelope] whose
// concrete variant is fixed when the message is sent. The actor's loop
// therefore dispatches every envelope to the right handler without
// inspecting types at runtime.
//
// # Messages
//
// A message type binds itself to the actor that handles it and fixes its
// result type by implementing [Message] or [AsyncMessage]:
//
//	type Counter struct{ n int }
//
//	type Add struct{ N int }
//
//	func (m Add) Handle(_ *actor.Context[*Counter], c *Counter) int {
//	    c.n += m.N
//	    return c.n
//	}
//
// Asynchronous handlers return the suspended rest of their work as an
// [Async], which the loop drives according to [Options.AsyncMode]:
//
//	func (m Fetch) HandleAsync(_ *actor.Context[*Cache], c *Cache) actor.Async[[]byte] {
//	    url := c.base + m.Path // read state on the loop goroutine
//	    return func(ctx context.Context) []byte { return download(ctx, url) }
//	}
//
// # Sending Messages
//
// An [Address] is the only way into an actor. The four send functions pick
// the envelope variant:
//
//   - [DoSend]: synchronous handler, no reply
//   - [DoSendAsync]: asynchronous handler, no reply
//   - [Send]: synchronous handler, returns a [Reply]
//   - [SendAsync]: asynchronous handler, returns a [Reply]
//
// For example:
//
//	addr := actor.Spawn(&Counter{}, actor.Options{})
//	err := actor.DoSend(addr, Add{N: 1})
//	n, err := actor.Send(addr, Add{N: 2}).Await(ctx)
//
// Every send fails with [ErrDisconnected] once the actor is unreachable.
// A request whose actor stops before replying also resolves with
// [ErrDisconnected]. Abandoning a [Reply] never cancels the handler.
//
// # Lifetime
//
// An actor runs until its context is cancelled, [Loop.Stop] or
// [Context.Stop] is called, or all of its strong addresses are released. In
// the last case the messages already queued are still handled. Actors can
// implement [Starter], [Stopper] and [Finalizer] to hook into the lifecycle.
//
// Loops support pause/resume and step mode for debugging and testing:
//
//	loop.Pause()       // Stop processing messages
//	loop.Step()        // Process exactly one message
//	loop.Resume()      // Continue normal processing
//	<-loop.Done()      // Wait for the loop to exit
package actor
