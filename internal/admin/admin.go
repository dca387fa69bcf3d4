// Package admin exposes the local-only administrative control plane: a unix
// domain socket speaking one JSON request and one JSON answer per
// connection. It is never internet-facing; the CLI connects, issues a
// single request, and exits.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardhaus/cardhaus/internal/manager"
)

// Handler executes one administrative request.
type Handler func(manager.Request) manager.Answer

// Server accepts control-plane connections on a unix socket. It implements
// the server.Service interface.
type Server struct {
	path    string
	handler Handler
	logger  *zap.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// NewServer creates a control-plane server listening at the given socket
// path once started.
//
// Precondition: path must be non-empty; handler and logger must be non-nil.
func NewServer(path string, handler Handler, logger *zap.Logger) *Server {
	return &Server{
		path:    path,
		handler: handler,
		logger:  logger,
	}
}

// Start listens on the socket and serves requests until Stop is called.
// A stale socket file from an unclean shutdown is removed first.
func (s *Server) Start() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale admin socket: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listening on admin socket %s: %w", s.path, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("admin socket listening", zap.String("path", s.path))

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accepting admin connection: %w", err)
		}
		go s.serve(conn)
	}
}

// Stop closes the listener and removes the socket file.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	_ = os.Remove(s.path)
}

// serve handles one connection: decode a request, answer, close.
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	var req manager.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.logger.Warn("malformed admin request", zap.Error(err))
		return
	}

	answer := s.handler(req)
	if err := json.NewEncoder(conn).Encode(answer); err != nil {
		s.logger.Warn("writing admin answer", zap.Error(err))
		return
	}

	s.logger.Info("admin request served",
		zap.String("op", string(req.Op)),
		zap.String("status", string(answer.Status)),
	)
}

// Client issues administrative requests against a server socket.
type Client struct {
	path string
}

// NewClient creates a client for the socket at path.
func NewClient(path string) *Client {
	return &Client{path: path}
}

// Do sends one request and waits for the synchronous answer.
func (c *Client) Do(req manager.Request) (manager.Answer, error) {
	conn, err := net.DialTimeout("unix", c.path, 5*time.Second)
	if err != nil {
		return manager.Answer{}, fmt.Errorf("connecting to admin socket %s: %w", c.path, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return manager.Answer{}, fmt.Errorf("sending admin request: %w", err)
	}

	var answer manager.Answer
	if err := json.NewDecoder(conn).Decode(&answer); err != nil {
		return manager.Answer{}, fmt.Errorf("reading admin answer: %w", err)
	}
	return answer, nil
}
