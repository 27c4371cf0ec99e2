// Package core holds the transport-agnostic connection and room
// primitives. It never opens sockets or touches storage; adapters own the
// transports and inject them here.
package core

// Frame is one serialized outbound event.
type Frame []byte

// SessionID identifies one live connection.
type SessionID string

// SignalConnection abstracts the messaging transport of one connection.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues a frame without blocking. It fails when the peer's
	// buffer is full or the connection is closed; a failed live delivery is
	// accepted, clients recover from history on the next join.
	TrySend(Frame) error
	Close()
}
