package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/legalize2/location-tracker-app/internal/fanout"
	"github.com/legalize2/location-tracker-app/pkg/logger"
)

const (
	defaultSendBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// clientCommand is the inbound control message shape.
type clientCommand struct {
	Action     string `json:"action"`
	TrackingID string `json:"trackingId"`
}

// Handler upgrades HTTP requests into subscriber connections and
// bridges them onto the fan-out router.
type Handler struct {
	router     *fanout.Router
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     logger.Logger
}

// Option customizes the handler.
type Option func(*Handler)

// WithSendBuffer sets the per-connection outbound buffer size.
func WithSendBuffer(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a WebSocket handler bound to router.
func NewHandler(router *fanout.Router, opts ...Option) *Handler {
	h := &Handler{
		router:     router,
		sendBuffer: defaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Named("ws")
	}
	return h
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	conn := newConn(sock, h.sendBuffer)
	h.logger.Debug(r.Context(), "subscriber connected", logger.String("subscriberId", conn.ID()))

	go h.writePump(conn)
	h.readPump(r, conn)
}

// readPump consumes control messages until the peer goes away, then
// tears the connection down. Runs on the request goroutine.
func (h *Handler) readPump(r *http.Request, conn *Conn) {
	defer func() {
		conn.shutdown()
		h.router.OnDisconnect(conn)
		_ = conn.sock.Close()
		h.logger.Debug(r.Context(), "subscriber disconnected", logger.String("subscriberId", conn.ID()))
	}()

	conn.sock.SetReadLimit(maxMessageSize)
	_ = conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	conn.sock.SetPongHandler(func(string) error {
		return conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd clientCommand
		if err := conn.sock.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(r.Context(), "websocket read failed", logger.Error(err))
			}
			return
		}
		h.handleCommand(conn, cmd)
	}
}

func (h *Handler) handleCommand(conn *Conn, cmd clientCommand) {
	switch {
	case cmd.TrackingID == "":
		conn.enqueue(outboundMessage{Type: "error"})
	case cmd.Action == "subscribe":
		h.router.Subscribe(conn, cmd.TrackingID)
		conn.enqueue(outboundMessage{Type: "subscribed", TrackingID: cmd.TrackingID})
	case cmd.Action == "unsubscribe":
		h.router.Unsubscribe(conn, cmd.TrackingID)
		conn.enqueue(outboundMessage{Type: "unsubscribed", TrackingID: cmd.TrackingID})
	default:
		conn.enqueue(outboundMessage{Type: "error"})
	}
}

// writePump drains the outbound buffer onto the socket and keeps the
// connection alive with pings.
func (h *Handler) writePump(conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.shutdown()
		_ = conn.sock.Close()
	}()

	for {
		select {
		case msg := <-conn.out:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.closed:
			return
		}
	}
}
