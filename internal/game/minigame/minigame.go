// Package minigame is a small turn-based game engine: every seat holds a
// private hand of numeric cards and plays them in rotation for a fixed
// number of rounds. It is the composition-time game the server binary
// ships with and exercises the full engine capability surface.
package minigame

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/cardhaus/cardhaus/internal/room"
)

// Settings is the client-supplied engine configuration.
type Settings struct {
	// Players is the seat capacity.
	Players int `json:"players"`
	// MinPlayers is the lower admission bound for an early start vote.
	// Zero means the room only starts when full.
	MinPlayers int `json:"min_players,omitempty"`
	// Rounds is how many full rotations a game lasts.
	Rounds int `json:"rounds"`
}

func (s Settings) validate() error {
	if s.Players < 2 || s.Players > 8 {
		return fmt.Errorf("players must be 2-8, got %d", s.Players)
	}
	if s.MinPlayers < 2 || s.MinPlayers > s.Players {
		return fmt.Errorf("min_players must be 2-%d, got %d", s.Players, s.MinPlayers)
	}
	if s.Rounds < 1 || s.Rounds > 100 {
		return fmt.Errorf("rounds must be 1-100, got %d", s.Rounds)
	}
	return nil
}

// Defaults for settings fields left at zero.
const (
	defaultPlayers = 4
	defaultRounds  = 4
)

// Engine implements room.Engine.
type Engine struct {
	settings Settings

	starts   int
	finished bool
	turn     int
	round    int
	played   int // plays in the current rotation

	hands  [][]int // per-seat private cards, consumed front to back
	drawn  []int   // per-seat cards played so far
	scores []int
}

// New constructs an engine from a settings payload. It is the room.Factory
// for this game.
//
// Postcondition: Returns a ready engine, or a non-nil error if the
// settings are rejected.
func New(raw json.RawMessage) (room.Engine, error) {
	var settings Settings
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, fmt.Errorf("parsing settings: %w", err)
		}
	}
	if settings.Players == 0 {
		settings.Players = defaultPlayers
	}
	if settings.Rounds == 0 {
		settings.Rounds = defaultRounds
	}
	if settings.MinPlayers == 0 {
		settings.MinPlayers = settings.Players
	}
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &Engine{settings: settings}, nil
}

// Inbound event payload.
type playRequest struct {
	Action string `json:"action"`
}

// Outbound event payloads.
type notice struct {
	Action string `json:"action"`
	Round  int    `json:"round,omitempty"`
	Rounds int    `json:"rounds,omitempty"`
	Turn   int    `json:"turn,omitempty"`
	Seat   *int   `json:"seat,omitempty"`
	Value  int    `json:"value,omitempty"`
	Hand   []int  `json:"hand,omitempty"`
	Scores []int  `json:"scores,omitempty"`

	Players    int `json:"players,omitempty"`
	MinPlayers int `json:"min_players,omitempty"`
}

// Start deals every seat a fresh hand and begins round one.
func (e *Engine) Start(b *room.Broadcast) error {
	n := e.settings.Players
	e.starts++
	e.finished = false
	e.turn = rand.Intn(n)
	e.round = 1
	e.played = 0
	e.drawn = make([]int, n)
	e.scores = make([]int, n)
	e.hands = make([][]int, n)
	for seat := range e.hands {
		hand := make([]int, e.settings.Rounds)
		for i := range hand {
			hand[i] = 1 + rand.Intn(9)
		}
		e.hands[seat] = hand
	}

	b.ToAll(notice{Action: "start", Round: 1, Rounds: e.settings.Rounds, Turn: e.turn})
	for seat := range e.hands {
		b.ToSeat(seat, notice{Action: "deal", Hand: e.hands[seat]})
	}
	return nil
}

// OnEnter sends the joiner its view of the game: the room settings before
// the first start, afterwards a snapshot holding only this seat's private
// hand.
func (e *Engine) OnEnter(b *room.Broadcast, seat int) {
	if e.starts == 0 {
		b.ToSeat(seat, notice{
			Action:     "settings",
			Players:    e.settings.Players,
			MinPlayers: e.settings.MinPlayers,
			Rounds:     e.settings.Rounds,
		})
		return
	}
	b.ToSeat(seat, notice{
		Action: "state",
		Round:  e.round,
		Rounds: e.settings.Rounds,
		Turn:   e.turn,
		Hand:   e.hands[seat][e.drawn[seat]:],
		Scores: e.scores,
	})
}

// OnLeave is a no-op; the seat's hand stays dealt for a replacement.
func (e *Engine) OnLeave(b *room.Broadcast, seat int) {}

// OnEvent applies one play. Out-of-turn plays and unknown actions are
// rejected without any observable effect.
func (e *Engine) OnEvent(b *room.Broadcast, payload json.RawMessage, seat int) error {
	if e.finished || e.starts == 0 {
		return nil
	}
	var req playRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parsing event: %w", err)
	}
	if req.Action != "play" || seat != e.turn {
		return nil
	}

	value := e.hands[seat][e.drawn[seat]]
	e.drawn[seat]++
	e.scores[seat] += value
	b.ToAll(notice{Action: "play", Seat: &seat, Value: value})

	e.turn = (e.turn + 1) % e.settings.Players
	e.played++
	if e.played < e.settings.Players {
		return nil
	}

	e.played = 0
	e.round++
	if e.round > e.settings.Rounds {
		e.finished = true
		b.ToAll(notice{Action: "game_over", Scores: e.scores})
		return nil
	}
	b.ToAll(notice{Action: "round", Round: e.round, Turn: e.turn})
	return nil
}

// PlayerBounds reports the admission bound and seat capacity.
func (e *Engine) PlayerBounds() (min, capacity int) {
	return e.settings.MinPlayers, e.settings.Players
}

// ShouldEnd reports whether the configured rounds have been played out.
func (e *Engine) ShouldEnd() bool {
	return e.finished
}
