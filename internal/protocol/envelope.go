// Package protocol defines the JSON message envelope exchanged between the
// room server and its clients. Every logical message is one JSON text frame.
// Game event payloads are opaque to this layer and pass through as raw JSON.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type tags an envelope with its message variant.
type Type string

const (
	TypeEvent              Type = "event"
	TypeVote               Type = "vote"
	TypeNewVote            Type = "new_vote"
	TypeCurrentVote        Type = "current_vote"
	TypeQuitVote           Type = "quit_vote"
	TypeRtcStart           Type = "rtc_start"
	TypeRtcSignaling       Type = "rtc_signaling"
	TypeIntroduction       Type = "introduction"
	TypeClientJoined       Type = "client_joined"
	TypeClientDisconnected Type = "client_disconnected"
	TypeJoinedClients      Type = "joined_clients"
	TypePlayerID           Type = "player_id"
	TypeChat               Type = "chat"
	TypePlayerOrder        Type = "player_order"
	TypePing               Type = "ping"
	TypePong               Type = "pong"
)

// Topic identifies what a voting session decides.
type Topic string

const (
	TopicStartGame Topic = "start_game"
	TopicTeaming   Topic = "teaming"
	TopicRevanche  Topic = "revanche"
	// TopicKick is declared in the wire protocol but the server does not
	// implement it yet; kick votes evaluate to a no-op.
	TopicKick Topic = "kick"
)

// Ballot choices. A choice is an index into the topic's options; every
// current topic is binary.
const (
	ChoiceAgree   = 0
	ChoiceDecline = 1
)

// PeerInfo describes one connected client to the others.
type PeerInfo struct {
	Name       string `json:"name"`
	Connection int    `json:"connection"`
	Seat       int    `json:"seat"`
}

// SeatAssignment tells a newly registered client its connection id, seat,
// and the room's seat capacity.
type SeatAssignment struct {
	Connection int `json:"connection"`
	Seat       int `json:"seat"`
	Capacity   int `json:"capacity"`
}

// BallotEntry is one cast ballot in a vote tally.
type BallotEntry struct {
	Connection int `json:"connection"`
	Choice     int `json:"choice"`
}

// SeatOrder maps a connection to the seat it occupies after re-teaming.
type SeatOrder struct {
	Connection int `json:"connection"`
	Seat       int `json:"seat"`
}

// Envelope is the wire frame. Type is always set; the remaining fields are
// populated per variant and omitted otherwise.
type Envelope struct {
	Type Type `json:"type"`

	// Event carries an opaque game event payload.
	Event json.RawMessage `json:"event,omitempty"`

	// Voting fields.
	Choice  *int          `json:"choice,omitempty"`
	Voter   *int          `json:"voter,omitempty"`
	Topic   Topic         `json:"topic,omitempty"`
	Ballots []BallotEntry `json:"ballots,omitempty"`

	// Origin is the connection a relayed message came from: the chat
	// sender, the introduction subject, the RTC originator, or the
	// connection that disconnected.
	Origin *int `json:"origin,omitempty"`

	// RTC signaling relay fields. Payload and Signal are not interpreted.
	Payload string `json:"payload,omitempty"`
	Signal  string `json:"signal,omitempty"`
	Target  *int   `json:"target,omitempty"`

	// Name is the self-reported display name in an introduction.
	Name string `json:"name,omitempty"`

	Peer       *PeerInfo       `json:"peer,omitempty"`
	Peers      []PeerInfo      `json:"peers,omitempty"`
	Assignment *SeatAssignment `json:"assignment,omitempty"`

	Text  string      `json:"text,omitempty"`
	Order []SeatOrder `json:"order,omitempty"`
}

// Encode marshals the envelope to a single JSON frame.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses a single JSON frame and validates its type tag.
//
// Postcondition: Returns an envelope with a known Type, or a non-nil error.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if !knownTypes[env.Type] {
		return Envelope{}, fmt.Errorf("unknown envelope type %q", env.Type)
	}
	return env, nil
}

var knownTypes = map[Type]bool{
	TypeEvent:              true,
	TypeVote:               true,
	TypeNewVote:            true,
	TypeCurrentVote:        true,
	TypeQuitVote:           true,
	TypeRtcStart:           true,
	TypeRtcSignaling:       true,
	TypeIntroduction:       true,
	TypeClientJoined:       true,
	TypeClientDisconnected: true,
	TypeJoinedClients:      true,
	TypePlayerID:           true,
	TypeChat:               true,
	TypePlayerOrder:        true,
	TypePing:               true,
	TypePong:               true,
}

// KnownTopic reports whether t is a declared voting topic.
func KnownTopic(t Topic) bool {
	switch t {
	case TopicStartGame, TopicTeaming, TopicRevanche, TopicKick:
		return true
	}
	return false
}

// Event wraps an opaque game event payload.
func Event(payload json.RawMessage) Envelope {
	return Envelope{Type: TypeEvent, Event: payload}
}

// Vote relays one cast ballot to the other clients.
func Vote(choice, voter int) Envelope {
	return Envelope{Type: TypeVote, Choice: &choice, Voter: &voter}
}

// NewVote announces that a voting session on the given topic has opened.
func NewVote(topic Topic) Envelope {
	return Envelope{Type: TypeNewVote, Topic: topic}
}

// CurrentVote catches a newly joined client up on an in-progress vote.
func CurrentVote(topic Topic, ballots []BallotEntry) Envelope {
	return Envelope{Type: TypeCurrentVote, Topic: topic, Ballots: ballots}
}

// QuitVote announces that the active voting session was cancelled.
func QuitVote() Envelope {
	return Envelope{Type: TypeQuitVote}
}

// RtcStart announces that originator wants to begin RTC negotiation.
func RtcStart(originator int) Envelope {
	return Envelope{Type: TypeRtcStart, Origin: &originator}
}

// RtcSignaling relays an opaque signaling payload. On the way in, Target
// names the destination connection; on the way out, Origin names the sender.
func RtcSignaling(payload, signal string, origin int) Envelope {
	return Envelope{Type: TypeRtcSignaling, Payload: payload, Signal: signal, Origin: &origin}
}

// Introduction announces a client's display name.
func Introduction(name string, origin int) Envelope {
	return Envelope{Type: TypeIntroduction, Name: name, Origin: &origin}
}

// ClientJoined announces a newly registered client to the others.
func ClientJoined(peer PeerInfo) Envelope {
	return Envelope{Type: TypeClientJoined, Peer: &peer}
}

// ClientDisconnected announces that a connection left the room.
func ClientDisconnected(connection int) Envelope {
	return Envelope{Type: TypeClientDisconnected, Origin: &connection}
}

// JoinedClients lists the already-present clients for a newcomer.
func JoinedClients(peers []PeerInfo) Envelope {
	return Envelope{Type: TypeJoinedClients, Peers: peers}
}

// PlayerID gives a client its seat assignment.
func PlayerID(a SeatAssignment) Envelope {
	return Envelope{Type: TypePlayerID, Assignment: &a}
}

// Chat relays a chat line with its sender attached.
func Chat(text string, origin int) Envelope {
	return Envelope{Type: TypeChat, Text: text, Origin: &origin}
}

// PlayerOrder broadcasts the seat permutation after re-teaming.
func PlayerOrder(order []SeatOrder) Envelope {
	return Envelope{Type: TypePlayerOrder, Order: order}
}

// Ping is the liveness probe frame; clients answer with Pong.
func Ping() Envelope { return Envelope{Type: TypePing} }

// Pong answers a Ping.
func Pong() Envelope { return Envelope{Type: TypePong} }
