package manager

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardhaus/cardhaus/internal/game/minigame"
	"github.com/cardhaus/cardhaus/internal/room"
)

// nopConn is a throwaway transport for occupying seats.
type nopConn struct{}

func (nopConn) WriteMessage([]byte) error { return nil }
func (nopConn) Close() error              { return nil }

// fixedGenerator returns scripted ids and counts how often it was asked.
type fixedGenerator struct {
	ids   []string
	calls int
}

func (g *fixedGenerator) Next() string {
	id := g.ids[g.calls%len(g.ids)]
	g.calls++
	return id
}

func testRoomConfig() room.Config {
	return room.Config{ProbeGrace: 5 * time.Millisecond, ProbeTimeout: time.Minute}
}

func newTestManager(t *testing.T, gen IDGenerator) *Manager {
	t.Helper()
	if gen == nil {
		gen = NewSequenceGenerator()
	}
	factories := map[string]room.Factory{"minigame": minigame.New}
	return New(gen, factories, testRoomConfig(), zaptest.NewLogger(t))
}

func TestCreateRoomAndLookup(t *testing.T) {
	m := newTestManager(t, nil)

	id, rm, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)
	require.NotNil(t, rm)
	assert.Len(t, id, 4)

	got, ok := m.GetRoom(id)
	require.True(t, ok)
	assert.Same(t, rm, got)
	assert.Equal(t, 1, m.Len())
}

func TestCreateRoomUnknownGame(t *testing.T) {
	m := newTestManager(t, nil)

	_, _, err := m.CreateRoom("jass", nil)
	assert.ErrorIs(t, err, ErrUnknownGame)
	assert.Equal(t, 0, m.Len())
}

func TestCreateRoomInvalidSettings(t *testing.T) {
	m := newTestManager(t, nil)

	_, _, err := m.CreateRoom("minigame", json.RawMessage(`{"players":1}`))
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestCreateRoomIDCollisionFailsWithoutRetry(t *testing.T) {
	gen := &fixedGenerator{ids: []string{"aaaa"}}
	m := newTestManager(t, gen)

	_, _, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)

	_, _, err = m.CreateRoom("minigame", nil)
	assert.ErrorIs(t, err, ErrRoomExists)
	assert.Equal(t, 2, gen.calls, "a collision must not trigger another draw")
	assert.Equal(t, 1, m.Len())
}

func TestMaintainReclaimsEmptyRooms(t *testing.T) {
	m := newTestManager(t, nil)

	emptyID, _, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)
	occupiedID, occupied, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)
	_, err = occupied.Register(nopConn{})
	require.NoError(t, err)

	m.Maintain()

	_, ok := m.GetRoom(emptyID)
	assert.False(t, ok, "empty room should be reclaimed")
	_, ok = m.GetRoom(occupiedID)
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMaintainRoomSingle(t *testing.T) {
	m := newTestManager(t, nil)

	id, rm, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)
	connID, err := rm.Register(nopConn{})
	require.NoError(t, err)

	m.MaintainRoom(id)
	assert.Equal(t, 1, m.Len())

	rm.Unregister(connID)
	m.MaintainRoom(id)
	assert.Equal(t, 0, m.Len())

	// Unknown ids are a no-op.
	m.MaintainRoom("zzzz")
}

func TestIndexRoomsSkipsFullRooms(t *testing.T) {
	m := newTestManager(t, nil)

	_, full, err := m.CreateRoom("minigame", json.RawMessage(`{"players":2,"min_players":2,"rounds":1}`))
	require.NoError(t, err)
	_, err = full.Register(nopConn{})
	require.NoError(t, err)
	_, err = full.Register(nopConn{})
	require.NoError(t, err)

	openID, open, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)
	_, err = open.Register(nopConn{})
	require.NoError(t, err)

	indexes := m.IndexRooms()
	require.Len(t, indexes, 1)
	assert.Equal(t, openID, indexes[0].ID)
	assert.Equal(t, 4, indexes[0].Capacity)
	assert.Len(t, indexes[0].Players, 1)
}

func TestIndexRoomsBoundedAndSorted(t *testing.T) {
	m := newTestManager(t, nil)

	for i := 0; i < indexLimit+8; i++ {
		_, _, err := m.CreateRoom("minigame", nil)
		require.NoError(t, err)
	}

	indexes := m.IndexRooms()
	require.Len(t, indexes, indexLimit)
	for i := 1; i < len(indexes); i++ {
		assert.Less(t, indexes[i-1].ID, indexes[i].ID)
	}
}

func TestProcessRequestCloseRoom(t *testing.T) {
	m := newTestManager(t, nil)
	id, rm, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)
	_, err = rm.Register(nopConn{})
	require.NoError(t, err)

	answer := m.ProcessRequest(Request{Op: OpCloseRoom, RoomID: id})
	assert.Equal(t, StatusSuccessful, answer.Status)
	assert.Equal(t, 0, m.Len())

	answer = m.ProcessRequest(Request{Op: OpCloseRoom, RoomID: id})
	assert.Equal(t, StatusUnsuccessful, answer.Status)
}

func TestProcessRequestListRooms(t *testing.T) {
	m := newTestManager(t, nil)
	id, rm, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)
	_, err = rm.Register(nopConn{})
	require.NoError(t, err)

	answer := m.ProcessRequest(Request{Op: OpListRooms})
	require.Equal(t, StatusSuccessful, answer.Status)
	require.Len(t, answer.Rooms, 1)
	assert.Equal(t, id, answer.Rooms[0].ID)
}

func TestProcessRequestCleanUnused(t *testing.T) {
	m := newTestManager(t, nil)
	for i := 0; i < 3; i++ {
		_, _, err := m.CreateRoom("minigame", nil)
		require.NoError(t, err)
	}

	answer := m.ProcessRequest(Request{Op: OpCleanUnused})
	assert.Equal(t, StatusSuccessful, answer.Status)
	assert.Equal(t, 0, m.Len())
}

func TestProcessRequestSaveLoadUnimplemented(t *testing.T) {
	m := newTestManager(t, nil)

	for _, op := range []Op{OpSave, OpLoad} {
		answer := m.ProcessRequest(Request{Op: op, Path: "state.json"})
		assert.Equal(t, StatusUnsuccessful, answer.Status, "op %s", op)
	}
}

func TestProcessRequestUnknownOp(t *testing.T) {
	m := newTestManager(t, nil)
	answer := m.ProcessRequest(Request{Op: "reboot"})
	assert.Equal(t, StatusUnsuccessful, answer.Status)
}

func TestSweeperReclaimsPeriodically(t *testing.T) {
	m := newTestManager(t, nil)
	_, _, err := m.CreateRoom("minigame", nil)
	require.NoError(t, err)

	s := NewSweeper(m, 10*time.Millisecond, zaptest.NewLogger(t))
	go func() {
		if err := s.Start(); err != nil {
			panic(fmt.Sprintf("sweeper: %v", err))
		}
	}()
	defer s.Stop()

	require.Eventually(t, func() bool { return m.Len() == 0 },
		2*time.Second, 5*time.Millisecond)
}
