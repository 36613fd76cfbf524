package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoMessage is returned by Transport.Receive when nothing arrived
	// within the timeout.
	ErrNoMessage = errors.New("no message received")

	// ErrClosed means the viewer connection is gone, from either side.
	ErrClosed = errors.New("viewer transport closed")
)

// Transport is a message channel to one viewer.
type Transport interface {
	// Receive waits up to timeout for the next inbound message. It returns
	// ErrNoMessage on timeout and an error wrapping ErrClosed once the
	// connection has been closed cleanly.
	Receive(timeout time.Duration) ([]byte, error)

	// Send writes v as one JSON message.
	Send(ctx context.Context, v any) error

	Close() error
}
