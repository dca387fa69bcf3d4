package room

import (
	"github.com/cardhaus/cardhaus/internal/protocol"
)

// VotingSession is the ephemeral majority-poll state embedded in a room.
// It is created empty when a vote opens and consumed on resolution; the
// owning room's lock guards every method.
//
// Invariant: the ballot count never exceeds the live connection count,
// because a leaving client's ballot is retracted before it is dropped from
// the registry.
type VotingSession struct {
	// Topic is what this vote decides.
	Topic protocol.Topic

	ballots map[int]int // connection id → choice
}

func newVotingSession(topic protocol.Topic) *VotingSession {
	return &VotingSession{
		Topic:   topic,
		ballots: make(map[int]int),
	}
}

// Cast records a ballot. A second ballot from the same connection is a
// silent no-op and Cast reports false.
func (v *VotingSession) Cast(connection, choice int) bool {
	if _, dup := v.ballots[connection]; dup {
		return false
	}
	v.ballots[connection] = choice
	return true
}

// Retract removes a leaving connection's ballot, if it cast one.
func (v *VotingSession) Retract(connection int) bool {
	if _, ok := v.ballots[connection]; !ok {
		return false
	}
	delete(v.ballots, connection)
	return true
}

// Complete reports whether every one of the required voters has cast a
// ballot. required is the count of currently connected clients.
func (v *VotingSession) Complete(required int) bool {
	return required > 0 && len(v.ballots) >= required
}

// Count tallies the ballots cast for one choice.
func (v *VotingSession) Count(choice int) int {
	n := 0
	for _, c := range v.ballots {
		if c == choice {
			n++
		}
	}
	return n
}

// Ballots returns the tally so far, for catching up a newcomer.
func (v *VotingSession) Ballots() []protocol.BallotEntry {
	entries := make([]protocol.BallotEntry, 0, len(v.ballots))
	for conn, choice := range v.ballots {
		entries = append(entries, protocol.BallotEntry{Connection: conn, Choice: choice})
	}
	return entries
}
