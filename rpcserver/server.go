package rpcserver

import (
	"context"
	"net/http"
	"time"

	"github.com/brc20-prog/brc20-programmable-module/internal/xlog"
)

// Server wraps an http.Server bound to a Handler, grounded on the
// teacher's rpc.Server Start/Stop shape.
type Server struct {
	handler *Handler
	server  *http.Server
	logger  xlog.Logger
}

// NewServer constructs a Server listening on addr.
func NewServer(handler *Handler, addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/", handler)

	return &Server{
		handler: handler,
		logger:  xlog.New("rpcserver"),
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start begins serving in the background. It returns once the
// listener goroutine has been launched; a failure to bind surfaces
// asynchronously through the logger, matching the teacher's server.
func (s *Server) Start() error {
	s.logger.Infof("starting JSON-RPC server on %s", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("rpc server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down, giving in-flight requests up
// to ten seconds to complete.
func (s *Server) Stop() error {
	s.logger.Infof("stopping JSON-RPC server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Errorf("error shutting down rpc server: %v", err)
		return err
	}
	return nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() string {
	return s.server.Addr
}
