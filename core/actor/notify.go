package actor

import (
	"log/slog"
	"sync"
	"time"
)

// NotifyLater sends msg to the actor itself after d, unless the actor stops
// first. The delivery goes through the mailbox like any other message.
func NotifyLater[A any, R any](ctx *Context[A], msg Message[A, R], d time.Duration) {
	mustMessage(msg)
	addr := ctx.Address()
	tmr := time.NewTimer(d)
	go func() {
		defer tmr.Stop()
		select {
		case <-ctx.Done():
		case <-tmr.C:
			if err := DoSend(addr, msg); err != nil {
				ctx.Log().Debug("delayed notification dropped", slog.String("msg", msgTypeOf(msg)), slog.Any("error", err))
			}
		}
	}()
}

// NotifyInterval sends mk() to the actor itself every d until the actor stops
// or the returned cancel func is called. Ticking also stops when mk returns
// nil.
func NotifyInterval[A any, R any](ctx *Context[A], d time.Duration, mk func() Message[A, R]) (cancel func()) {
	addr := ctx.Address()
	quit := make(chan struct{})
	tmr := time.NewTicker(d)
	go func() {
		defer tmr.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			case <-tmr.C:
				msg := mk()
				if msg == nil {
					ctx.Log().Warn("interval notification produced no message, stopping")
					return
				}
				if err := DoSend(addr, msg); err != nil {
					ctx.Log().Warn("failed to send interval notification", slog.Any("error", err))
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(quit) }) }
}
