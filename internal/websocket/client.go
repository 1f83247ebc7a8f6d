package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Hub heartbeat sweep period; a connection that has not ponged since the
	// previous sweep is terminated.
	heartbeatInterval = 30 * time.Second

	// Maximum inbound frame size
	maxMessageSize = 16 * 1024

	// Outbound frame buffer per connection
	sendBufferSize = 256
)

// Conn is the subset of *websocket.Conn the hubs touch, extracted so tests
// can substitute an in-memory fake.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// client carries the per-socket state every hub needs: the transport, a
// buffered outbound queue drained by writePump, and the heartbeat liveness
// flag flipped by pong receipt.
type client struct {
	id    string
	conn  Conn
	send  chan []byte
	alive atomic.Bool

	closed    atomic.Bool
	closeSend sync.Once
}

func newClient(conn Conn) *client {
	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	c.alive.Store(true)
	return c
}

// enqueue marshals a frame onto the send queue. A full queue means the
// reader is not keeping up; the connection is dropped rather than blocking
// the caller.
func (c *client) enqueue(frame any) {
	if c.closed.Load() {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal outbound frame", "clientID", c.id, "error", err)
		return
	}
	c.enqueueRaw(data)
}

func (c *client) enqueueRaw(data []byte) {
	if c.closed.Load() {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("Send buffer full, dropping connection", "clientID", c.id)
		c.terminate()
	}
}

// writePump drains the send queue onto the socket. It exits when the queue
// is closed or a write fails; readPump notices the dead conn and unwinds.
func (c *client) writePump() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("Write failed", "clientID", c.id, "error", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ping sends a heartbeat probe; the transport pong marks the client alive.
func (c *client) ping() {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		slog.Debug("Ping failed", "clientID", c.id, "error", err)
	}
}

// terminate hard-closes the transport. Safe from any goroutine and safe to
// call repeatedly; the hub's unregister path still runs via readPump exit.
func (c *client) terminate() {
	if c.closed.CompareAndSwap(false, true) {
		c.conn.Close()
	}
}

// shutdownSend closes the outbound queue so writePump drains and exits.
// Only the owning hub calls this, on unregister.
func (c *client) shutdownSend() {
	c.closeSend.Do(func() { close(c.send) })
}

func (c *client) installPongHandler() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
}
