// Package web exposes the public session surface: room creation and
// discovery over HTTP plus the per-room WebSocket upgrade at /ws/{room_id}.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cardhaus/cardhaus/internal/config"
	"github.com/cardhaus/cardhaus/internal/manager"
	"github.com/cardhaus/cardhaus/internal/protocol"
	"github.com/cardhaus/cardhaus/internal/room"
)

// Server serves the HTTP and WebSocket endpoints. It implements the
// server.Service interface.
type Server struct {
	logger   *zap.Logger
	mgr      *manager.Manager
	presets  map[string]config.Preset
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewServer creates the web server.
//
// Precondition: mgr and logger must be non-nil; presets may be nil.
func NewServer(cfg config.ServerConfig, mgr *manager.Manager, presets map[string]config.Preset, logger *zap.Logger) *Server {
	s := &Server{
		logger:  logger,
		mgr:     mgr,
		presets: presets,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/ws/{room_id}", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}

// createRoomRequest is the room creation payload. Either a preset name or
// an explicit game plus settings document.
type createRoomRequest struct {
	Preset   string          `json:"preset,omitempty"`
	Game     string          `json:"game,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	game, settings := req.Game, req.Settings
	if req.Preset != "" {
		preset, ok := s.presets[req.Preset]
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown preset %q", req.Preset))
			return
		}
		game = preset.Game
		var err error
		if settings, err = preset.SettingsJSON(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	id, _, err := s.mgr.CreateRoom(game, settings)
	switch {
	case errors.Is(err, manager.ErrRoomExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.IndexRooms())
}

// handleWebSocket upgrades the connection and runs its blocking read loop.
// One goroutine per connection; the write side is the room's per-client
// outbox writer.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	rm, ok := s.mgr.GetRoom(roomID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no room %q", roomID))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	wsc := newWSConn(conn)

	id, err := rm.Register(wsc)
	if err != nil {
		// Explicit rejection before closing so the client can tell a
		// full room from a network fault.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "room full"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	logger := s.logger.With(zap.String("room", roomID), zap.Int("connection", id))
	logger.Debug("client connected")

	defer func() {
		rm.Unregister(id)
		s.mgr.MaintainRoom(roomID)
		logger.Debug("client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("read loop ended", zap.Error(err))
			}
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			// Fail-soft: log, drop, keep the connection open.
			logger.Warn("malformed inbound frame", zap.Error(err))
			continue
		}
		rm.HandleInput(env, id)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Interface check: the upgraded connection satisfies the room's transport.
var _ room.Conn = (*wsConn)(nil)
