package minigame

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardhaus/cardhaus/internal/protocol"
	"github.com/cardhaus/cardhaus/internal/room"
)

type recordConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recordConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *recordConn) Close() error { return nil }

func (c *recordConn) notices(t *testing.T) []notice {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notice, 0, len(c.frames))
	for _, frame := range c.frames {
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		require.Equal(t, protocol.TypeEvent, env.Type)
		var n notice
		require.NoError(t, json.Unmarshal(env.Event, &n))
		out = append(out, n)
	}
	return out
}

func awaitNotice(t *testing.T, c *recordConn, action string) notice {
	t.Helper()
	var found notice
	require.Eventually(t, func() bool {
		for _, n := range c.notices(t) {
			if n.Action == action {
				found = n
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "no %q notice delivered", action)
	return found
}

// testTable seats n connections and returns the broadcast facade over them.
func testTable(t *testing.T, n int) (*room.Broadcast, []*recordConn) {
	t.Helper()
	reg := room.NewRegistry(zaptest.NewLogger(t))
	t.Cleanup(reg.CloseAll)
	conns := make([]*recordConn, n)
	for seat := range conns {
		conns[seat] = &recordConn{}
		reg.Register(seat, conns[seat])
	}
	return room.NewBroadcast(reg, zaptest.NewLogger(t)), conns
}

func newEngine(t *testing.T, raw string) *Engine {
	t.Helper()
	var payload json.RawMessage
	if raw != "" {
		payload = json.RawMessage(raw)
	}
	e, err := New(payload)
	require.NoError(t, err)
	return e.(*Engine)
}

func TestNewDefaults(t *testing.T) {
	e := newEngine(t, "")
	minPlayers, capacity := e.PlayerBounds()
	assert.Equal(t, 4, minPlayers)
	assert.Equal(t, 4, capacity)
}

func TestNewPartialSettings(t *testing.T) {
	e := newEngine(t, `{"players":2,"rounds":1}`)
	minPlayers, capacity := e.PlayerBounds()
	assert.Equal(t, 2, minPlayers)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 1, e.settings.Rounds)
}

func TestNewRejectsBadSettings(t *testing.T) {
	cases := []string{
		`{"players":1}`,
		`{"players":9}`,
		`{"players":4,"min_players":5}`,
		`{"rounds":101}`,
		`{"players":"four"}`,
	}
	for _, raw := range cases {
		_, err := New(json.RawMessage(raw))
		assert.Error(t, err, "settings %s should be rejected", raw)
	}
}

func TestStartDealsPrivateHands(t *testing.T) {
	e := newEngine(t, `{"players":2,"min_players":2,"rounds":3}`)
	b, conns := testTable(t, 2)

	require.NoError(t, e.Start(b))

	start := awaitNotice(t, conns[0], "start")
	assert.Equal(t, 1, start.Round)
	assert.Equal(t, 3, start.Rounds)
	assert.Contains(t, []int{0, 1}, start.Turn)

	for seat, conn := range conns {
		deal := awaitNotice(t, conn, "deal")
		require.Len(t, deal.Hand, 3)
		assert.Equal(t, e.hands[seat], deal.Hand)
		for _, card := range deal.Hand {
			assert.GreaterOrEqual(t, card, 1)
			assert.LessOrEqual(t, card, 9)
		}
	}
}

func TestPlayRotatesTurnAndScores(t *testing.T) {
	e := newEngine(t, `{"players":2,"min_players":2,"rounds":2}`)
	b, conns := testTable(t, 2)
	require.NoError(t, e.Start(b))
	e.turn = 0

	expected := e.hands[0][0]
	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), 0))

	assert.Equal(t, 1, e.turn)
	assert.Equal(t, expected, e.scores[0])

	play := awaitNotice(t, conns[1], "play")
	require.NotNil(t, play.Seat)
	assert.Equal(t, 0, *play.Seat)
	assert.Equal(t, expected, play.Value)
}

func TestOutOfTurnPlayIgnored(t *testing.T) {
	e := newEngine(t, `{"players":2,"min_players":2,"rounds":2}`)
	b, _ := testTable(t, 2)
	require.NoError(t, e.Start(b))
	e.turn = 0

	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), 1))

	assert.Equal(t, 0, e.turn)
	assert.Equal(t, 0, e.scores[1])
	assert.Equal(t, 0, e.drawn[1])
}

func TestGameEndsAfterConfiguredRounds(t *testing.T) {
	e := newEngine(t, `{"players":2,"min_players":2,"rounds":1}`)
	b, conns := testTable(t, 2)
	require.NoError(t, e.Start(b))
	e.turn = 0

	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), 0))
	assert.False(t, e.ShouldEnd())
	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), 1))
	assert.True(t, e.ShouldEnd())

	over := awaitNotice(t, conns[0], "game_over")
	require.Len(t, over.Scores, 2)
	assert.Equal(t, e.scores, over.Scores)

	// Plays after the game is over are ignored.
	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), e.turn))
	assert.Equal(t, over.Scores, e.scores)
}

func TestRoundAdvanceAnnounced(t *testing.T) {
	e := newEngine(t, `{"players":2,"min_players":2,"rounds":2}`)
	b, conns := testTable(t, 2)
	require.NoError(t, e.Start(b))
	e.turn = 0

	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), 0))
	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), 1))

	round := awaitNotice(t, conns[0], "round")
	assert.Equal(t, 2, round.Round)
	assert.False(t, e.ShouldEnd())
}

func TestOnEnterBeforeStartSendsSettings(t *testing.T) {
	e := newEngine(t, `{"players":3,"min_players":2,"rounds":5}`)
	b, conns := testTable(t, 3)

	e.OnEnter(b, 1)

	settings := awaitNotice(t, conns[1], "settings")
	assert.Equal(t, 3, settings.Players)
	assert.Equal(t, 2, settings.MinPlayers)
	assert.Equal(t, 5, settings.Rounds)
}

func TestOnEnterSnapshotOmitsOtherHands(t *testing.T) {
	e := newEngine(t, `{"players":2,"min_players":2,"rounds":3}`)
	b, conns := testTable(t, 2)
	require.NoError(t, e.Start(b))
	e.turn = 0
	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), 0))

	// A reconnecting seat gets exactly its own remaining cards.
	e.OnEnter(b, 0)
	state := awaitNotice(t, conns[0], "state")
	assert.Equal(t, e.hands[0][1:], state.Hand)
	assert.Equal(t, e.scores, state.Scores)
	assert.Equal(t, 1, state.Round)
}

func TestMalformedEventRejected(t *testing.T) {
	e := newEngine(t, `{"players":2,"min_players":2,"rounds":1}`)
	b, _ := testTable(t, 2)
	require.NoError(t, e.Start(b))

	err := e.OnEvent(b, json.RawMessage(`{`), 0)
	assert.Error(t, err)
}

func TestEventBeforeStartIgnored(t *testing.T) {
	e := newEngine(t, `{"players":2,"min_players":2,"rounds":1}`)
	b, _ := testTable(t, 2)

	require.NoError(t, e.OnEvent(b, json.RawMessage(`{"action":"play"}`), 0))
	assert.Nil(t, e.hands)
}
