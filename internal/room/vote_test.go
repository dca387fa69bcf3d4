package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cardhaus/cardhaus/internal/protocol"
)

func TestVotingSessionCastAndCount(t *testing.T) {
	v := newVotingSession(protocol.TopicStartGame)

	assert.True(t, v.Cast(0, protocol.ChoiceAgree))
	assert.True(t, v.Cast(1, protocol.ChoiceDecline))
	assert.True(t, v.Cast(2, protocol.ChoiceAgree))

	assert.Equal(t, 2, v.Count(protocol.ChoiceAgree))
	assert.Equal(t, 1, v.Count(protocol.ChoiceDecline))
}

func TestVotingSessionDuplicateCastRejected(t *testing.T) {
	v := newVotingSession(protocol.TopicRevanche)

	assert.True(t, v.Cast(0, protocol.ChoiceAgree))
	assert.False(t, v.Cast(0, protocol.ChoiceDecline))
	assert.Equal(t, 1, v.Count(protocol.ChoiceAgree))
	assert.Equal(t, 0, v.Count(protocol.ChoiceDecline))
}

func TestVotingSessionRetract(t *testing.T) {
	v := newVotingSession(protocol.TopicTeaming)

	v.Cast(0, protocol.ChoiceAgree)
	assert.True(t, v.Retract(0))
	assert.False(t, v.Retract(0))
	assert.Equal(t, 0, v.Count(protocol.ChoiceAgree))
}

func TestVotingSessionComplete(t *testing.T) {
	v := newVotingSession(protocol.TopicStartGame)

	assert.False(t, v.Complete(0), "an empty room can never complete a vote")
	assert.False(t, v.Complete(2))

	v.Cast(0, protocol.ChoiceAgree)
	assert.False(t, v.Complete(2))

	v.Cast(1, protocol.ChoiceAgree)
	assert.True(t, v.Complete(2))
}

// Property-based tests

func TestPropertyVoteCountsMatchBallots(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := newVotingSession(protocol.TopicStartGame)
		voters := rapid.IntRange(1, 20).Draw(t, "voters")

		want := map[int]int{}
		for id := 0; id < voters; id++ {
			choice := rapid.IntRange(protocol.ChoiceAgree, protocol.ChoiceDecline).Draw(t, "choice")
			if !v.Cast(id, choice) {
				t.Fatalf("first ballot from %d rejected", id)
			}
			want[choice]++
		}

		if got := v.Count(protocol.ChoiceAgree); got != want[protocol.ChoiceAgree] {
			t.Fatalf("agree count %d, want %d", got, want[protocol.ChoiceAgree])
		}
		if got := v.Count(protocol.ChoiceDecline); got != want[protocol.ChoiceDecline] {
			t.Fatalf("decline count %d, want %d", got, want[protocol.ChoiceDecline])
		}
		if len(v.Ballots()) != voters {
			t.Fatalf("ballot count %d, want %d", len(v.Ballots()), voters)
		}
		if !v.Complete(voters) {
			t.Fatalf("vote with every ballot cast not complete")
		}
	})
}
