package transport

import "context"

// Conn is an open duplex connection.
type Conn interface {
	// Write sends one text frame.
	Write(frame []byte) error
	Close() error
}

// Listener receives the connection lifecycle from a Dialer.
type Listener interface {
	OnOpen(conn Conn)
	OnMessage(frame []byte)
	OnClose(err error)
}

// Dialer starts a connection to url and reports its lifecycle to l. Dial
// must not block until the connection opens. Cancelling ctx tears the
// connection down.
type Dialer interface {
	Dial(ctx context.Context, url string, l Listener) error
}
