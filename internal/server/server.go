package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Server owns the HTTP listener. It is opened by the connectivity
// manager once a link is up.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger

	mu     sync.Mutex
	open   bool
	addr   net.Addr
	errors chan error
}

// NewServer creates a server for handler on addr (host:port)
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, logger zerolog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		logger: logger,
		errors: make(chan error, 1),
	}
}

// Open starts listening. Calling it again while open is a no-op.
func (s *Server) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.open = true
	s.addr = ln.Addr()

	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP API listening")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP API failed")
			s.errors <- err
		}
	}()
	return nil
}

// Addr returns the bound address, nil before Open
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Errors reports a listener that stopped unexpectedly
func (s *Server) Errors() <-chan error {
	return s.errors
}

// Close shuts the server down gracefully
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	return s.httpServer.Shutdown(ctx)
}
