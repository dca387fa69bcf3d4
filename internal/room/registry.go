package room

import (
	"time"

	"go.uber.org/zap"

	"github.com/cardhaus/cardhaus/internal/protocol"
)

// Registry tracks the live connections of one room, each bound to a seat,
// and provides the unicast/broadcast send primitives. It is not internally
// synchronized: the owning room's lock guards every method.
type Registry struct {
	logger  *zap.Logger
	next    int
	clients map[int]*Client
}

// NewRegistry creates an empty connection registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger,
		clients: make(map[int]*Client),
	}
}

// Register binds a transport to a seat and returns the new connection id.
// Connection ids are sequential per room and never reused.
func (r *Registry) Register(seat int, conn Conn) int {
	id := r.next
	r.next++

	c := newClient(seat, conn)
	r.clients[id] = c
	go c.writeLoop(r.logger)
	return id
}

// Unregister removes a connection and closes its transport.
func (r *Registry) Unregister(id int) {
	c, ok := r.clients[id]
	if !ok {
		return
	}
	c.close()
	delete(r.clients, id)
}

// Get returns the client record for a connection id.
func (r *Registry) Get(id int) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.clients)
}

// IDs returns the connection ids in unspecified order.
func (r *Registry) IDs() []int {
	ids := make([]int, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// SeatOf returns the connection id occupying the given seat.
func (r *Registry) SeatOf(seat int) (int, bool) {
	for id, c := range r.clients {
		if c.Seat == seat {
			return id, true
		}
	}
	return 0, false
}

// Touch records inbound contact from a connection.
func (r *Registry) Touch(id int) {
	if c, ok := r.clients[id]; ok {
		c.LastContact = time.Now()
	}
}

// Peers describes the registered clients, for catch-up frames.
func (r *Registry) Peers() []protocol.PeerInfo {
	peers := make([]protocol.PeerInfo, 0, len(r.clients))
	for id, c := range r.clients {
		peers = append(peers, protocol.PeerInfo{
			Name:       c.Name,
			Connection: id,
			Seat:       c.Seat,
		})
	}
	return peers
}

// Names returns the display names of all connected clients.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for _, c := range r.clients {
		names = append(names, c.Name)
	}
	return names
}

// SendTo delivers an envelope to one connection. Unknown ids are ignored.
func (r *Registry) SendTo(id int, env protocol.Envelope) {
	c, ok := r.clients[id]
	if !ok {
		return
	}
	data, err := env.Encode()
	if err != nil {
		r.logger.Error("encoding envelope", zap.Error(err))
		return
	}
	c.enqueue(data, r.logger)
}

// SendToAll delivers an envelope to every connection.
func (r *Registry) SendToAll(env protocol.Envelope) {
	r.SendToAllExcept(-1, env)
}

// SendToAllExcept delivers an envelope to every connection but one.
// Messages to a single connection preserve submission order; no order is
// guaranteed across different connections.
func (r *Registry) SendToAllExcept(except int, env protocol.Envelope) {
	data, err := env.Encode()
	if err != nil {
		r.logger.Error("encoding envelope", zap.Error(err))
		return
	}
	for id, c := range r.clients {
		if id == except {
			continue
		}
		c.enqueue(data, r.logger)
	}
}

// CloseAll closes every transport and empties the registry.
func (r *Registry) CloseAll() {
	for id, c := range r.clients {
		c.close()
		delete(r.clients, id)
	}
}
