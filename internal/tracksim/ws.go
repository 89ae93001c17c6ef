package tracksim

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const wsReadWindow = 5 * time.Second

// watcher holds one WebSocket connection subscribed to every simulated
// link and counts the location updates that arrive.
type watcher struct {
	conn  *websocket.Conn
	count int64
	done  chan struct{}
}

// newWatcher dials the live feed and subscribes to all tracks before
// any sample is submitted, so every accepted fix should be delivered.
func newWatcher(ctx context.Context, cfg *Config, tracks []*Track) (*watcher, error) {
	wsURL := "ws" + strings.TrimPrefix(cfg.BaseURL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	w := &watcher{conn: conn, done: make(chan struct{})}
	for _, track := range tracks {
		if err := conn.WriteJSON(map[string]string{
			"action":     "subscribe",
			"trackingId": track.LinkID,
		}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe to %s: %w", track.LinkID, err)
		}
		if err := w.awaitAck(); err != nil {
			conn.Close()
			return nil, err
		}
	}

	go w.readLoop()
	return w, nil
}

func (w *watcher) awaitAck() error {
	_ = w.conn.SetReadDeadline(time.Now().Add(wsReadWindow))
	var msg struct {
		Type string `json:"type"`
	}
	if err := w.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read subscribe ack: %w", err)
	}
	if msg.Type != "subscribed" {
		return fmt.Errorf("unexpected ack type %q", msg.Type)
	}
	return nil
}

func (w *watcher) readLoop() {
	defer close(w.done)
	for {
		_ = w.conn.SetReadDeadline(time.Now().Add(wsReadWindow))
		var msg struct {
			Type string `json:"type"`
		}
		if err := w.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "location" {
			atomic.AddInt64(&w.count, 1)
		}
	}
}

func (w *watcher) received() int {
	return int(atomic.LoadInt64(&w.count))
}

func (w *watcher) close() {
	_ = w.conn.Close()
	<-w.done
}
