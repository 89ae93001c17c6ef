// Package ws delivers real-time location updates over WebSocket. Each
// connection is a fan-out subscriber; a slow or dead connection drops
// events instead of stalling the publisher.
package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/legalize2/location-tracker-app/internal/domain/model"
)

// Conn adapts one WebSocket connection to the fan-out subscriber
// contract. Send never blocks: outbound events pass through a buffered
// channel drained by the write pump, and a full buffer counts as a
// failed delivery.
type Conn struct {
	id     string
	sock   *websocket.Conn
	out    chan outboundMessage
	closed chan struct{}
	once   sync.Once
}

// outboundMessage is the wire shape for both location updates and
// control acknowledgements. The embedded event is nil for acks so its
// fields stay off the wire.
type outboundMessage struct {
	Type string `json:"type"`
	*model.UpdateEvent
	TrackingID string `json:"trackingId,omitempty"`
}

func newConn(sock *websocket.Conn, sendBuffer int) *Conn {
	if sendBuffer < 1 {
		sendBuffer = defaultSendBuffer
	}
	return &Conn{
		id:     uuid.NewString(),
		sock:   sock,
		out:    make(chan outboundMessage, sendBuffer),
		closed: make(chan struct{}),
	}
}

// ID returns the connection's subscriber identity.
func (c *Conn) ID() string {
	return c.id
}

// Send queues one update for delivery. It returns ErrSlowConsumer when
// the buffer is full and ErrConnClosed after the connection is torn
// down.
func (c *Conn) Send(event model.UpdateEvent) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.out <- outboundMessage{Type: "location", UpdateEvent: &event}:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

// enqueue queues a control acknowledgement; acks share the event
// buffer so ordering with updates is preserved.
func (c *Conn) enqueue(msg outboundMessage) bool {
	select {
	case c.out <- msg:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

// shutdown marks the connection closed. Idempotent.
func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.closed)
	})
}
