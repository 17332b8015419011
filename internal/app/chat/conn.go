package chat

import "errors"

// ErrConnClosed is returned by Send after the connection has been closed.
var ErrConnClosed = errors.New("connection closed")

// ErrSendQueueFull is returned by Send when the outbound queue cannot take another frame.
var ErrSendQueueFull = errors.New("client send queue full")

// Conn is one client's live channel as seen by rooms and sessions.
// Implementations must make Send non-blocking and safe to call from any goroutine,
// including after Close.
type Conn interface {
	// ID is the stable, server-assigned identity of the connection.
	ID() string

	// Send queues an encoded frame for delivery.
	Send(data []byte) error

	// Close terminates the connection. It is idempotent.
	Close()
}
