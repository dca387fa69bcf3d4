package web

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait is the per-frame write deadline.
const writeWait = 10 * time.Second

// wsConn adapts a gorilla websocket connection to the room.Conn transport
// surface. The room's outbox writer is the only steady-state writer; the
// mutex covers the overlap between the final frames and Close.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// WriteMessage sends one text frame.
func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a best-effort close frame and tears the connection down,
// which also ends the blocking read loop.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
