// Package feed serves hall snapshots over HTTP and pushes them to websocket
// clients, so a browser can present the hall the same way the terminal does.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/zappabad/tradinghall/internal/hall/view"
)

// Hall is the part of the hall service the feed reads and controls.
// *service.Service satisfies it.
type Hall interface {
	Snapshot() view.Snapshot
	Decisions(n int) []view.DecisionRecord
	SetRunning(ctx context.Context, running bool) error
	SetSymbol(ctx context.Context, symbol string) error
	TriggerFetch(ctx context.Context) (bool, error)
}

// Config holds configuration for the feed server.
type Config struct {
	Addr string
	// PollInterval is how often the hub checks for a new snapshot version.
	PollInterval time.Duration
	// SendBuffer is the per-client queue of pending frames.
	SendBuffer int
	// RequestTimeout bounds control requests forwarded to the hall.
	RequestTimeout time.Duration
}

// DefaultConfig returns a Config listening on localhost.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8090",
		PollInterval:   100 * time.Millisecond,
		SendBuffer:     16,
		RequestTimeout: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	return c
}

// Server is the HTTP + websocket feed of one hall.
type Server struct {
	cfg        Config
	hub        *Hub
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer registers every route and wraps them in request logging.
func NewServer(cfg Config, h Hall, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "feed")

	hub := NewHub(h, cfg, logger)
	api := &handlers{hall: h, timeout: cfg.RequestTimeout, log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/hall/snapshot", api.snapshot)
	mux.HandleFunc("GET /api/hall/decisions", api.decisions)
	mux.HandleFunc("POST /api/hall/symbol", api.setSymbol)
	mux.HandleFunc("POST /api/hall/running", api.setRunning)
	mux.HandleFunc("POST /api/hall/refresh", api.refresh)
	mux.HandleFunc("GET /ws", hub.HandleWS)

	return &Server{
		cfg: cfg,
		hub: hub,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      logging(logger)(mux),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: logger,
	}
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("feed: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("feed: listening", slog.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("feed: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("feed: shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("feed: shutdown: %w", err)
	}
	return nil
}
