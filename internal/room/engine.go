package room

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cardhaus/cardhaus/internal/protocol"
)

// Engine is the capability interface a pluggable game implements. The room
// drives the engine exclusively through these methods and never inspects
// game internals; seats index players in [0, capacity).
type Engine interface {
	// Start begins (or restarts) a game with the currently seated players.
	Start(b *Broadcast) error
	// OnEnter delivers the current public state to a seat that just
	// joined: a per-seat snapshot once started, the settings before.
	// The snapshot must not expose another seat's private state.
	OnEnter(b *Broadcast, seat int)
	// OnLeave informs the engine that a seat lost its connection.
	OnLeave(b *Broadcast, seat int)
	// OnEvent applies one opaque client event. Illegal or out-of-turn
	// events are rejected inside the engine and produce no effect.
	OnEvent(b *Broadcast, payload json.RawMessage, seat int) error
	// PlayerBounds reports the minimum admission count and seat
	// capacity. Both must stay constant for the engine's lifetime; the
	// manager reads them without the room lock.
	PlayerBounds() (min, capacity int)
	// ShouldEnd reports whether the current game has finished.
	ShouldEnd() bool
}

// Factory constructs an engine from a client-supplied settings payload.
// Rejected settings fail room creation; nothing is registered.
type Factory func(settings json.RawMessage) (Engine, error)

// Broadcast is the event-wrapping send facade handed to the engine. It
// addresses seats rather than connections and envelopes every payload as an
// opaque game event before dispatch.
type Broadcast struct {
	reg    *Registry
	logger *zap.Logger
}

// NewBroadcast wraps a registry in the engine-facing send facade. Engines
// under test can drive one directly without a running room.
func NewBroadcast(reg *Registry, logger *zap.Logger) *Broadcast {
	return &Broadcast{reg: reg, logger: logger}
}

// ToSeat sends a game event to the connection occupying one seat. Vacant
// seats are ignored.
func (b *Broadcast) ToSeat(seat int, payload any) {
	id, ok := b.reg.SeatOf(seat)
	if !ok {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("encoding game event", zap.Error(err))
		return
	}
	b.reg.SendTo(id, protocol.Event(raw))
}

// ToAll sends a game event to every connection.
func (b *Broadcast) ToAll(payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("encoding game event", zap.Error(err))
		return
	}
	b.reg.SendToAll(protocol.Event(raw))
}

// ToAllExcept sends a game event to every connection but the one occupying
// the given seat.
func (b *Broadcast) ToAllExcept(seat int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("encoding game event", zap.Error(err))
		return
	}
	except := -1
	if id, ok := b.reg.SeatOf(seat); ok {
		except = id
	}
	b.reg.SendToAllExcept(except, protocol.Event(raw))
}
