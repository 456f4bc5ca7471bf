package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/pokerroom/internal/config"
	"github.com/Tyrowin/pokerroom/internal/idgen"
	"github.com/Tyrowin/pokerroom/internal/session"
)

// Server owns every process-scoped component: the session store, the
// gateway, the connection hub and the HTTP server in front of them.
type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *session.Store
	manager  *session.Manager
	gateway  *Gateway
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	http     *http.Server
}

// New assembles a Server from cfg. Nothing runs until Start is called.
func New(cfg config.Config, logger *slog.Logger) *Server {
	gen := idgen.NewGenerator(cfg.Session.IDLength)
	store := session.NewStore(session.WithIDGenerator(gen))
	manager := session.NewManager(store, gen)
	gateway := NewGateway(manager, logger)
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		manager: manager,
		gateway: gateway,
		hub:     NewHub(gateway, cfg, logger),
		origins: origins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
	s.http = newHTTPServer(cfg.Port, s.Routes(), logger)
	return s
}

// Store returns the session store backing the server.
func (s *Server) Store() *session.Store {
	return s.store
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start launches the hub loop and, when an idle TTL is configured, the
// session reaper. Both stop on Shutdown.
func (s *Server) Start() {
	go s.hub.Run()
	s.logger.Info("hub started")

	if s.cfg.Session.IdleTTL > 0 {
		go s.reapLoop(s.hub.Context())
		s.logger.Info("session reaper started",
			"idle_ttl", s.cfg.Session.IdleTTL,
			"interval", s.cfg.Session.ReapInterval)
	}
}

// ListenAndServe serves HTTP on the configured port until Shutdown. It
// returns nil after a graceful shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then closes every websocket and waits
// for the pumps to exit. The whole sequence is bounded by timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	httpErr := shutdownHTTPServer(s.http, timeout, s.logger)
	hubErr := s.hub.Shutdown(max(time.Until(deadline), 0))

	return errors.Join(httpErr, hubErr)
}

func (s *Server) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Session.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapIdle()
		}
	}
}

func (s *Server) reapIdle() []string {
	ids := s.store.Reap(s.cfg.Session.IdleTTL)
	if len(ids) > 0 {
		s.logger.Info("reaped idle sessions", "count", len(ids), "session_ids", ids)
	}
	return ids
}
