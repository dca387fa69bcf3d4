// Package manager maintains the registry of concurrent rooms: creation with
// obfuscated ids, lookup, lobby discovery, periodic maintenance, and the
// administrative control operations.
package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cardhaus/cardhaus/internal/room"
)

// ErrRoomExists is returned when a freshly generated id collides with a
// currently registered room. Creation fails outright; there is no retry.
var ErrRoomExists = errors.New("room id already in use")

// ErrUnknownGame is returned when no engine factory is registered under the
// requested game name.
var ErrUnknownGame = errors.New("unknown game")

// indexLimit bounds the lobby discovery listing.
const indexLimit = 32

// RoomIndex is the read-only discovery projection of one room. It is
// recomputed on demand and never mutated.
type RoomIndex struct {
	ID       string   `json:"id"`
	Players  []string `json:"players"`
	Capacity int      `json:"capacity"`
}

// Manager is the registry of rooms keyed by generated identifiers. Its own
// lock guards only the map; it is never held across a room operation, so a
// stuck room cannot stall the manager or any other room.
type Manager struct {
	logger    *zap.Logger
	gen       IDGenerator
	factories map[string]room.Factory
	roomCfg   room.Config

	mu    sync.Mutex
	rooms map[string]*room.Room
}

// New creates a manager.
//
// Precondition: gen and logger must be non-nil; factories must hold at
// least one engine factory.
func New(gen IDGenerator, factories map[string]room.Factory, roomCfg room.Config, logger *zap.Logger) *Manager {
	return &Manager{
		logger:    logger,
		gen:       gen,
		factories: factories,
		roomCfg:   roomCfg,
		rooms:     make(map[string]*room.Room),
	}
}

// CreateRoom constructs an engine from the supplied settings and registers
// a new room around it.
//
// Postcondition: Returns the room id and handle, or an error if the
// settings are rejected, the game is unknown, or the generated id collides.
// On error nothing is registered.
func (m *Manager) CreateRoom(game string, settings json.RawMessage) (string, *room.Room, error) {
	factory, ok := m.factories[game]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}
	engine, err := factory(settings)
	if err != nil {
		return "", nil, fmt.Errorf("constructing %s engine: %w", game, err)
	}

	id := m.gen.Next()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rooms[id]; exists {
		return "", nil, fmt.Errorf("%w: %s", ErrRoomExists, id)
	}
	rm := room.New(engine, m.roomCfg, m.logger.With(zap.String("room", id)))
	m.rooms[id] = rm

	m.logger.Info("room created",
		zap.String("room", id),
		zap.String("game", game),
		zap.Int("capacity", rm.Capacity()),
	)
	return id, rm, nil
}

// GetRoom looks up a room by id.
func (m *Manager) GetRoom(id string) (*room.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[id]
	return rm, ok
}

// Len returns the number of registered rooms.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// MaintainRoom reclaims one room if it has no connections left.
func (m *Manager) MaintainRoom(id string) {
	rm, ok := m.GetRoom(id)
	if !ok {
		return
	}
	if rm.ShouldClose() {
		m.removeRoom(id, rm)
	}
}

// Maintain sweeps every room and reclaims the empty ones.
func (m *Manager) Maintain() {
	for id, rm := range m.snapshot() {
		if rm.ShouldClose() {
			m.removeRoom(id, rm)
		}
	}
}

// IndexRooms returns the discovery listing: rooms with at least one free
// seat, bounded to a fixed number of entries, in stable id order.
func (m *Manager) IndexRooms() []RoomIndex {
	indexes := make([]RoomIndex, 0)
	for id, rm := range m.snapshot() {
		if rm.Len() >= rm.Capacity() {
			continue
		}
		indexes = append(indexes, RoomIndex{
			ID:       id,
			Players:  rm.Names(),
			Capacity: rm.Capacity(),
		})
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i].ID < indexes[j].ID })
	if len(indexes) > indexLimit {
		indexes = indexes[:indexLimit]
	}
	return indexes
}

// snapshot copies the registry map so room operations run without the
// manager lock held.
func (m *Manager) snapshot() map[string]*room.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make(map[string]*room.Room, len(m.rooms))
	for id, rm := range m.rooms {
		rooms[id] = rm
	}
	return rooms
}

func (m *Manager) removeRoom(id string, rm *room.Room) {
	rm.Close()
	m.mu.Lock()
	delete(m.rooms, id)
	m.mu.Unlock()
	m.logger.Info("room reclaimed", zap.String("room", id))
}
