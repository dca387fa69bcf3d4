package room

// Conn is one live transport link bound to a client. Implementations wrap
// the concrete websocket connection; the room layer never sees transport
// details beyond this surface.
type Conn interface {
	// WriteMessage sends one complete text frame. It may block until the
	// frame is written or the transport fails.
	WriteMessage(data []byte) error
	// Close tears down the transport. It must be safe to call more than
	// once; the read side observes the closure and ends its loop.
	Close() error
}
