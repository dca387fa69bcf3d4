// Package room implements one in-memory game session: a bounded set of
// connections bound to seats, a lifecycle state machine, an embedded
// majority-voting session, and a pluggable game engine driven through its
// capability interface.
package room

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardhaus/cardhaus/internal/protocol"
)

// ErrRoomFull is returned when registration fails because every seat is
// occupied, even after a liveness recheck.
var ErrRoomFull = errors.New("room full")

// State is the room lifecycle phase.
type State int

const (
	// StateEntering: seats are filling up, the engine has not started.
	StateEntering State = iota
	// StateTeaming: a re-seating vote is in progress.
	StateTeaming
	// StatePlaying: the engine is active.
	StatePlaying
	// StateEnding: the post-game revanche vote is in progress.
	StateEnding
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateEntering:
		return "entering"
	case StateTeaming:
		return "teaming"
	case StatePlaying:
		return "playing"
	case StateEnding:
		return "ending"
	}
	return "unknown"
}

// Config holds the room's liveness probe tuning.
type Config struct {
	// ProbeGrace is how long a probe waits after pinging before it reads
	// the last-contact timestamps.
	ProbeGrace time.Duration
	// ProbeTimeout is the maximum silence before a connection fails the
	// probe.
	ProbeTimeout time.Duration
}

// DefaultConfig returns the probe tuning used when the caller passes a zero
// Config.
func DefaultConfig() Config {
	return Config{
		ProbeGrace:   2 * time.Second,
		ProbeTimeout: 30 * time.Second,
	}
}

// Room is one session's state machine. It owns a connection registry, an
// optional voting session, and one game engine instance. A single lock
// guards all mutable state, making room-level operations linearizable;
// different rooms are fully independent.
type Room struct {
	mu     sync.Mutex
	logger *zap.Logger
	cfg    Config

	reg    *Registry
	bcast  *Broadcast
	engine Engine

	state State
	vote  *VotingSession
}

// New creates a room around a freshly constructed engine.
//
// Precondition: engine and logger must be non-nil.
// Postcondition: Returns a room in the Entering state with no connections.
func New(engine Engine, cfg Config, logger *zap.Logger) *Room {
	if cfg.ProbeGrace <= 0 {
		cfg.ProbeGrace = DefaultConfig().ProbeGrace
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	reg := NewRegistry(logger)
	return &Room{
		logger: logger,
		cfg:    cfg,
		reg:    reg,
		bcast:  &Broadcast{reg: reg, logger: logger},
		engine: engine,
		state:  StateEntering,
	}
}

// State returns the current lifecycle phase.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Len returns the number of live connections.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg.Len()
}

// Capacity returns the engine-reported seat capacity.
func (r *Room) Capacity() int {
	_, capacity := r.engine.PlayerBounds()
	return capacity
}

// Names returns the display names of the connected clients.
func (r *Room) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg.Names()
}

// Register admits a transport into the first unoccupied seat. When every
// seat is taken it runs the liveness probe once across all current
// connections and retries; if the room is still full the caller is not
// admitted and ErrRoomFull is returned.
//
// Postcondition: On success the newcomer has received its seat assignment,
// the peer list, the engine's entry snapshot, and any active vote's tally;
// the other clients have been told about the join.
func (r *Room) Register(conn Conn) (int, error) {
	r.mu.Lock()
	seat, ok := r.freeSeat()
	if !ok {
		r.mu.Unlock()
		if !r.probeAndEvict() {
			return 0, ErrRoomFull
		}
		r.mu.Lock()
		seat, ok = r.freeSeat()
	}
	if !ok {
		r.mu.Unlock()
		return 0, ErrRoomFull
	}
	defer r.mu.Unlock()

	minPlayers, capacity := r.engine.PlayerBounds()
	peers := r.reg.Peers()
	id := r.reg.Register(seat, conn)

	r.reg.SendTo(id, protocol.PlayerID(protocol.SeatAssignment{
		Connection: id,
		Seat:       seat,
		Capacity:   capacity,
	}))
	r.reg.SendToAllExcept(id, protocol.ClientJoined(protocol.PeerInfo{
		Connection: id,
		Seat:       seat,
	}))
	r.reg.SendTo(id, protocol.JoinedClients(peers))

	r.engine.OnEnter(r.bcast, seat)

	if r.vote != nil {
		r.reg.SendTo(id, protocol.CurrentVote(r.vote.Topic, r.vote.Ballots()))
	}

	if r.state == StateEntering {
		switch n := r.reg.Len(); {
		case n == capacity:
			r.quitVote()
			r.startGame()
		case n >= minPlayers:
			// Enough players to start early; every join inside the
			// admission window reopens the poll so the newcomer
			// takes part.
			r.startVote(protocol.TopicStartGame)
		}
	}

	r.logger.Debug("client registered",
		zap.Int("connection", id),
		zap.Int("seat", seat),
		zap.String("state", r.state.String()),
	)
	return id, nil
}

// Unregister removes a connection, retracts its ballot from any active
// vote, informs the engine, and broadcasts the departure.
func (r *Room) Unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(id)
}

func (r *Room) unregisterLocked(id int) {
	c, ok := r.reg.Get(id)
	if !ok {
		return
	}
	seat := c.Seat
	if r.vote != nil {
		r.vote.Retract(id)
	}
	r.reg.Unregister(id)
	r.engine.OnLeave(r.bcast, seat)
	r.reg.SendToAll(protocol.ClientDisconnected(id))

	if r.reg.Len() == 0 {
		r.vote = nil
		return
	}
	// The leaver may have been the last holdout.
	if r.vote != nil && r.vote.Complete(r.reg.Len()) {
		r.evaluateVote()
	}
}

// HandleInput routes one decoded inbound frame. Control messages are
// handled locally; opaque game events go to the engine. Receipt of any
// well-formed frame counts as liveness contact.
func (r *Room) HandleInput(env protocol.Envelope, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.reg.Get(id)
	if !ok {
		return
	}
	r.reg.Touch(id)

	switch env.Type {
	case protocol.TypeEvent:
		r.handleEvent(env.Event, c.Seat)
	case protocol.TypeVote:
		if env.Choice == nil {
			return
		}
		r.handleVote(*env.Choice, id)
	case protocol.TypeNewVote:
		r.handleVoteRequest(env.Topic)
	case protocol.TypeChat:
		r.reg.SendToAll(protocol.Chat(env.Text, id))
	case protocol.TypeRtcStart:
		r.reg.SendToAllExcept(id, protocol.RtcStart(id))
	case protocol.TypeRtcSignaling:
		if env.Target == nil {
			return
		}
		r.reg.SendTo(*env.Target, protocol.RtcSignaling(env.Payload, env.Signal, id))
	case protocol.TypeIntroduction:
		if c.Name != "" || env.Name == "" {
			return
		}
		c.Name = env.Name
		r.reg.SendToAllExcept(id, protocol.Introduction(env.Name, id))
	case protocol.TypePing:
		r.reg.SendTo(id, protocol.Pong())
	case protocol.TypePong:
		// Contact already recorded.
	default:
		r.logger.Debug("dropping unexpected client frame",
			zap.String("type", string(env.Type)),
			zap.Int("connection", id),
		)
	}
}

// handleEvent forwards a game event to the engine. Events outside the
// Playing state produce no state change and no broadcast.
func (r *Room) handleEvent(payload []byte, seat int) {
	if r.state != StatePlaying {
		return
	}
	if err := r.engine.OnEvent(r.bcast, payload, seat); err != nil {
		r.logger.Debug("engine rejected event",
			zap.Int("seat", seat),
			zap.Error(err),
		)
		return
	}
	if r.engine.ShouldEnd() {
		r.startVote(protocol.TopicRevanche)
		r.state = StateEnding
	}
}

// handleVoteRequest opens a client-requested voting session. Only teaming
// may be requested from the outside; start and revanche polls are opened by
// the room itself, and kick is declared but not implemented.
func (r *Room) handleVoteRequest(topic protocol.Topic) {
	if r.vote != nil {
		return
	}
	switch topic {
	case protocol.TopicTeaming:
		if r.state != StateEntering && r.state != StatePlaying {
			return
		}
		r.state = StateTeaming
		r.startVote(protocol.TopicTeaming)
	case protocol.TopicKick:
		r.logger.Warn("kick votes are not implemented")
	default:
	}
}

// startVote resets all ballots and broadcasts the topic.
func (r *Room) startVote(topic protocol.Topic) {
	r.vote = newVotingSession(topic)
	r.reg.SendToAll(protocol.NewVote(topic))
}

// quitVote cancels any active voting session.
func (r *Room) quitVote() {
	if r.vote == nil {
		return
	}
	r.vote = nil
	r.reg.SendToAll(protocol.QuitVote())
}

// handleVote records one ballot, relays it (not the outcome) to the other
// clients, and evaluates once every connected client has voted. A ballot
// without an active topic and a second ballot from the same client are
// silent no-ops.
func (r *Room) handleVote(choice, id int) {
	if r.vote == nil {
		return
	}
	if !r.vote.Cast(id, choice) {
		return
	}
	r.reg.SendToAllExcept(id, protocol.Vote(choice, id))
	if r.vote.Complete(r.reg.Len()) {
		r.evaluateVote()
	}
}

// evaluateVote consumes the active voting session and applies its outcome.
func (r *Room) evaluateVote() {
	v := r.vote
	r.vote = nil

	r.logger.Debug("evaluating vote",
		zap.String("topic", string(v.Topic)),
		zap.Int("agree", v.Count(protocol.ChoiceAgree)),
		zap.Int("decline", v.Count(protocol.ChoiceDecline)),
	)

	switch v.Topic {
	case protocol.TopicRevanche:
		if v.Count(protocol.ChoiceAgree) > v.Count(protocol.ChoiceDecline) {
			r.startGame()
		} else {
			r.reg.CloseAll()
		}
	case protocol.TopicStartGame:
		if v.Count(protocol.ChoiceAgree) > v.Count(protocol.ChoiceDecline) {
			r.startGame()
		}
	case protocol.TopicTeaming:
		r.reseat()
		r.startGame()
	case protocol.TopicKick:
		r.logger.Warn("kick vote resolved but kicking is not implemented")
	}
}

// startGame starts the engine and moves the room to Playing.
func (r *Room) startGame() {
	r.vote = nil
	if err := r.engine.Start(r.bcast); err != nil {
		r.logger.Error("engine start failed", zap.Error(err))
		return
	}
	r.state = StatePlaying
}

// reseat assigns every connected client a seat from a random permutation
// and broadcasts the new order.
func (r *Room) reseat() {
	_, capacity := r.engine.PlayerBounds()
	ids := r.reg.IDs()
	perm := rand.Perm(capacity)

	order := make([]protocol.SeatOrder, 0, len(ids))
	for i, id := range ids {
		c, _ := r.reg.Get(id)
		c.Seat = perm[i]
		order = append(order, protocol.SeatOrder{Connection: id, Seat: c.Seat})
	}
	r.reg.SendToAll(protocol.PlayerOrder(order))
}

// freeSeat returns the first seat no connection occupies.
func (r *Room) freeSeat() (int, bool) {
	_, capacity := r.engine.PlayerBounds()
	occupied := make([]bool, capacity)
	for _, id := range r.reg.IDs() {
		c, _ := r.reg.Get(id)
		if c.Seat >= 0 && c.Seat < capacity {
			occupied[c.Seat] = true
		}
	}
	for seat, taken := range occupied {
		if !taken {
			return seat, true
		}
	}
	return 0, false
}

// probeAndEvict pings every connection, waits out the grace window, and
// evicts the stalest connection whose silence exceeds the timeout. At most
// one seat is reclaimed per probe.
func (r *Room) probeAndEvict() bool {
	r.mu.Lock()
	if r.reg.Len() == 0 {
		r.mu.Unlock()
		return false
	}
	r.reg.SendToAll(protocol.Ping())
	r.mu.Unlock()

	time.Sleep(r.cfg.ProbeGrace)

	r.mu.Lock()
	defer r.mu.Unlock()

	stale := -1
	var staleContact time.Time
	for _, id := range r.reg.IDs() {
		c, _ := r.reg.Get(id)
		if r.isActive(c) {
			continue
		}
		if stale == -1 || c.LastContact.Before(staleContact) {
			stale = id
			staleContact = c.LastContact
		}
	}
	if stale == -1 {
		return false
	}
	r.logger.Info("evicting unresponsive connection",
		zap.Int("connection", stale),
	)
	r.unregisterLocked(stale)
	return true
}

// isActive reports whether a connection's last contact falls within the
// probe timeout window.
func (r *Room) isActive(c *Client) bool {
	return time.Since(c.LastContact) <= r.cfg.ProbeTimeout
}

// ShouldClose reports whether the room holds zero connections, independent
// of state. Rooms are torn down by removal from the manager, not by an
// internal terminal state.
func (r *Room) ShouldClose() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg.Len() == 0
}

// Close tears down every transport. The manager calls this before dropping
// the room from its registry.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reg.CloseAll()
}
