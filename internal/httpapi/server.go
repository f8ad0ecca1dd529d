package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server owns the listener and http.Server for a Handler.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewServer binds addr immediately so ":0" resolves to a real port.
func NewServer(addr string, handler *Handler, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		listener: listener,
		logger:   logger,
		server: &http.Server{
			Handler:           handler.Routes(),
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ErrorLog:          zap.NewStdLog(logger),
		},
	}, nil
}

func (s *Server) Addr() string { return s.listener.Addr().String() }

// Start blocks until the server stops. It returns nil after Stop.
func (s *Server) Start() error {
	s.logger.Info("http_server_listening", zap.String("addr", s.Addr()))
	if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http_server_stopping")
	return s.server.Shutdown(ctx)
}
