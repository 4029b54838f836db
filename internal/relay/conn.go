package relay

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendQueueSize bounds the per-connection outbound queue so a stalled
	// peer cannot back up delivery to others.
	sendQueueSize = 256

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameSize   = 8 * 1024
	readBufferSize = 1024
)

// Conn is one live transport session. It is ephemeral and owned by the relay
// server for its lifetime: created on accept, destroyed on close, never
// persisted. The identity claim and subscription set are mutated only under
// the registry's lock.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte
	addr string

	// Guarded by Registry.mu.
	userID   string
	channels map[string]struct{}
	closed   bool
}

func newConn(ws *websocket.Conn, addr string) *Conn {
	if ws != nil {
		ws.SetReadLimit(maxFrameSize)
	}
	return &Conn{
		ws:       ws,
		send:     make(chan []byte, sendQueueSize),
		addr:     addr,
		channels: make(map[string]struct{}),
	}
}

// readPump reads inbound frames in arrival order and hands each to handle.
// It returns when the transport closes or errors; the caller unregisters.
func (c *Conn) readPump(handle func(raw []byte)) {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		handle(raw)
	}
}

// writePump drains the outbound queue onto the transport and keeps the
// connection alive with pings. It exits when the queue is closed by
// Unregister or a write fails.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
