package ws

import "errors"

var (
	// ErrSlowConsumer means the connection's send buffer was full.
	ErrSlowConsumer = errors.New("slow consumer")
	// ErrConnClosed means the connection has been torn down.
	ErrConnClosed = errors.New("connection closed")
)
