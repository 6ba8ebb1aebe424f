// Package api provides the HTTP surface for VentSync Core: the WebSocket
// endpoint the hub lives behind, read-only device record queries for
// viewer UIs, and the arrangement placement interface.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/airloom/ventsync/internal/device"
	"github.com/airloom/ventsync/internal/hub"
	"github.com/airloom/ventsync/internal/infrastructure/config"
	"github.com/airloom/ventsync/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.ServerConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Store   *device.Store
	Hub     *hub.Hub
	Version string
}

// Server is the HTTP server for VentSync Core.
type Server struct {
	cfg     config.ServerConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	store   *device.Store
	hub     *hub.Hub
	version string
	server  *http.Server
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("device store is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("hub is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		store:   deps.Store,
		hub:     deps.Hub,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections. It starts the hub's
// lifecycle goroutine and launches the listener in the background; use
// Close() to stop.
func (s *Server) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.hub.Run(runCtx)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.cfg.GetReadTimeout(),
		WriteTimeout: s.cfg.GetWriteTimeout(),
		IdleTimeout:  s.cfg.GetIdleTimeout(),
	}

	// The write timeout must not apply to the WebSocket endpoint, which
	// holds its connection open indefinitely; gorilla manages its own
	// deadlines. net/http has no per-route timeouts, so WriteTimeout is
	// left at zero and slow handlers rely on client-side timeouts.
	s.server.WriteTimeout = 0

	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting briefly for in-flight
// requests before forcing connections closed.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
