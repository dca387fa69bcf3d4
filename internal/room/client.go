package room

import (
	"time"

	"go.uber.org/zap"
)

// outboxSize bounds the per-connection send queue. A client that cannot
// drain this many frames is considered stuck and further frames to it are
// dropped rather than stalling the room.
const outboxSize = 64

// Client is one registered connection and its room-scoped state. A Client
// is owned by its room: every field is read and written under the room lock
// except the outbox, which the writer goroutine drains.
type Client struct {
	// Name is the self-reported display name, settable exactly once via
	// an introduction message. Empty until then.
	Name string
	// Seat is the logical player slot this connection occupies.
	Seat int
	// LastContact is the receive time of the last well-formed inbound
	// message, which doubles as the liveness signal.
	LastContact time.Time

	conn   Conn
	outbox chan []byte
	closed bool
}

func newClient(seat int, conn Conn) *Client {
	return &Client{
		Seat:        seat,
		LastContact: time.Now(),
		conn:        conn,
		outbox:      make(chan []byte, outboxSize),
	}
}

// enqueue hands a frame to the writer goroutine. Sends are fire-and-forget:
// a full outbox or a closed client drops the frame.
func (c *Client) enqueue(data []byte, logger *zap.Logger) {
	if c.closed {
		return
	}
	select {
	case c.outbox <- data:
	default:
		logger.Warn("outbox full, dropping frame",
			zap.Int("seat", c.Seat),
		)
	}
}

// close stops the writer goroutine and tears down the transport. Idempotent.
// Caller holds the room lock.
func (c *Client) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

// writeLoop drains the outbox to the transport. A write failure is logged
// and the loop keeps going: a dead connection is only removed by explicit
// unregister or a liveness sweep, never by send failure alone.
func (c *Client) writeLoop(logger *zap.Logger) {
	for data := range c.outbox {
		if err := c.conn.WriteMessage(data); err != nil {
			logger.Debug("connection write failed",
				zap.Int("seat", c.Seat),
				zap.Error(err),
			)
		}
	}
	_ = c.conn.Close()
}
