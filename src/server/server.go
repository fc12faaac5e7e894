// Package server exposes the chat orchestrator over HTTP. Replies are relayed
// as a chunked text/plain body, one flush per fragment.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elee1766/chatrelay/src/chat"
)

const (
	defaultIdentityHeader  = "X-User-Id"
	defaultMaxBodyBytes    = 64 << 10
	defaultShutdownTimeout = 30 * time.Second
)

// Orchestrator is the part of chat.Orchestrator the server drives.
type Orchestrator interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Reply, error)
	History(ctx context.Context, identity chat.Identity, chatID string) ([]chat.Turn, error)
	Ask(ctx context.Context, message string) (string, error)
}

var _ Orchestrator = (*chat.Orchestrator)(nil)

// Config holds the server's collaborators and settings.
type Config struct {
	Orchestrator Orchestrator
	Addr         string

	IdentityHeader  string
	RequireIdentity bool
	AllowedOrigins  []string

	MaxBodyBytes    int64
	MaxMessageBytes int
	ShutdownTimeout time.Duration

	// Ping reports whether the store is reachable. Optional.
	Ping func(ctx context.Context) error
	// Stats is reported by the health endpoint. Optional.
	Stats *TurnStats

	Logger *slog.Logger
}

// Server is the HTTP front of the relay.
type Server struct {
	orch            Orchestrator
	addr            string
	identityHeader  string
	requireIdentity bool
	allowedOrigins  map[string]struct{}
	maxBodyBytes    int64
	maxMessageBytes int
	shutdownTimeout time.Duration
	ping            func(ctx context.Context) error
	stats           *TurnStats
	logger          *slog.Logger
	started         time.Time
	handler         http.Handler
}

// New builds a Server and its handler chain.
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = defaultIdentityHeader
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = chat.DefaultMaxMessageBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		orch:            cfg.Orchestrator,
		addr:            cfg.Addr,
		identityHeader:  http.CanonicalHeaderKey(cfg.IdentityHeader),
		requireIdentity: cfg.RequireIdentity,
		maxBodyBytes:    cfg.MaxBodyBytes,
		maxMessageBytes: cfg.MaxMessageBytes,
		shutdownTimeout: cfg.ShutdownTimeout,
		ping:            cfg.Ping,
		stats:           cfg.Stats,
		logger:          cfg.Logger.With("component", "server"),
		started:         time.Now(),
	}
	if len(cfg.AllowedOrigins) > 0 {
		s.allowedOrigins = make(map[string]struct{}, len(cfg.AllowedOrigins))
		for _, o := range cfg.AllowedOrigins {
			s.allowedOrigins[o] = struct{}{}
		}
	}
	s.handler = chainMiddlewares(s.routes(),
		s.withRequestLogging,
		s.withRecover,
		s.withCORS,
		s.withIdentity,
	)
	return s, nil
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully. Streams
// still running when the shutdown timeout expires are cut off; their partial
// replies are still stored.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// In-flight requests must survive ctx so shutdown can drain them.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		ErrorLog:    slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down", "timeout", s.shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown timed out, closing connections", "error", err)
			_ = srv.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}
