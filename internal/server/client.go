package server

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smtart/whiteboard-app/internal/board"
)

const (
	// maxMessageBytes leaves headroom for embedded image payloads.
	maxMessageBytes = 10 << 20
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
	sendBufferSize  = 256
)

// wsConn is the slice of *websocket.Conn the pumps rely on.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(deadline time.Time) error
	SetWriteDeadline(deadline time.Time) error
	SetPongHandler(handler func(string) error)
	Close() error
}

// client pairs one websocket connection with its outbound buffer. The
// roomID field is owned by the hub's dispatch goroutine; the pumps
// never touch it.
type client struct {
	hub    *Hub
	conn   wsConn
	id     string
	send   chan []byte
	roomID board.RoomID
}

func newClient(h *Hub, conn wsConn, id string) *client {
	return &client{
		hub:  h,
		conn: conn,
		id:   id,
		send: make(chan []byte, sendBufferSize),
	}
}

// readPump forwards inbound frames to the hub until the connection
// errors or the hub stops. It owns the read side of the connection.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("read failed", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
		select {
		case c.hub.frames <- inboundFrame{sender: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings. It owns the write side of the connection. Each buffered frame
// is one protocol message, so frames are written individually rather
// than batched.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
