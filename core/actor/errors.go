package actor

import "errors"

var (
	// ErrDisconnected is returned when an actor can no longer be reached:
	// its loop has stopped, all of its addresses were released, or it stopped
	// before producing the reply to a request.
	ErrDisconnected = errors.New("actor disconnected")

	// ErrStopped is returned by loop control operations after the loop exited.
	ErrStopped = errors.New("actor stopped")
)
