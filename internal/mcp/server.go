package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/skillforge/skillbridge/internal/mcp/hooks"
	"github.com/skillforge/skillbridge/internal/mcp/middleware"
	"github.com/skillforge/skillbridge/internal/skills"
)

// StatusSource exposes the bridge state served by the catalog resource and
// the health endpoint.
type StatusSource interface {
	Active() []skills.Skill
	KnownCount() int
	LastSync() time.Time
}

// Server is the agent-facing MCP server. It serves the SSE transport, wraps
// every registered tool in the middleware chain and reports lifecycle events
// to hooks.
type Server struct {
	config          Config
	logger          *zap.Logger
	hooks           hooks.Hooks
	metrics         *hooks.MetricsHooks
	rateLimit       *middleware.RateLimitMiddleware
	middlewareChain middleware.Middleware
	mcpServer       *server.MCPServer
	sseServer       *server.SSEServer
	httpServer      *http.Server
	router          chi.Router

	mu     sync.RWMutex
	status StatusSource
}

// NewServer creates the server. Extra hooks are notified alongside the
// built-in logging, Sentry and metrics hooks.
func NewServer(cfg Config, logger *zap.Logger, extra ...hooks.Hooks) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := hooks.NewMetricsHooks()
	compositeHooks := hooks.NewCompositeHooks(
		hooks.NewLoggingHooks(logger),
		hooks.NewSentryHooks(),
		metrics,
	)
	compositeHooks.AddHooks(extra...)

	rateLimit := middleware.NewRateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Recovery is outermost so it also catches panics from the others.
	chain := middleware.Chain(
		middleware.NewErrorRecoveryMiddleware(logger).Apply,
		middleware.NewTimeoutMiddleware(cfg.ToolTimeout).Apply,
		middleware.NewLoggingMiddleware(logger).Apply,
		rateLimit.Apply,
	)

	s := &Server{
		config:          cfg,
		logger:          logger,
		hooks:           compositeHooks,
		metrics:         metrics,
		rateLimit:       rateLimit,
		middlewareChain: chain,
	}

	sessionHooks := &server.Hooks{}
	sessionHooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		s.hooks.OnSessionStart(ctx, session.SessionID())
	})
	sessionHooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		s.rateLimit.Cleanup(session.SessionID())
		s.hooks.OnSessionEnd(ctx, session.SessionID())
	})

	s.mcpServer = server.NewMCPServer(cfg.ServerName, cfg.ServerVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, false),
		server.WithHooks(sessionHooks),
		server.WithRecovery(),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sseOpts := []server.SSEOption{
		server.WithHTTPServer(s.httpServer),
	}
	if cfg.BaseURL != "" {
		sseOpts = append(sseOpts, server.WithBaseURL(cfg.BaseURL))
	}
	if cfg.KeepAlive > 0 {
		sseOpts = append(sseOpts, server.WithKeepAliveInterval(cfg.KeepAlive))
	}
	s.sseServer = server.NewSSEServer(s.mcpServer, sseOpts...)

	s.router = s.routes()
	s.httpServer.Handler = s.router

	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/sse", s.sseServer.SSEHandler())
	r.Method(http.MethodPost, "/message", s.sseServer.MessageHandler())
	return r
}

// Handler returns the HTTP handler serving /sse, /message and /healthz.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// AddTool registers or replaces a tool. The handler runs behind the
// middleware chain.
func (s *Server) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	wrapped := s.middlewareChain(handler)

	s.mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := wrapped(ctx, req)
		s.hooks.OnToolCall(ctx, middleware.SessionID(ctx), req.Params.Name, time.Since(start), result != nil && result.IsError, err)
		return result, err
	})
}

// OnSync forwards sync pass results to the hooks.
func (s *Server) OnSync(ctx context.Context, active, registered, discovered int, err error) {
	s.hooks.OnSync(ctx, active, registered, discovered, err)
}

// AttachStatus sets the state source and registers the catalog resource.
func (s *Server) AttachStatus(src StatusSource) {
	s.mu.Lock()
	s.status = src
	s.mu.Unlock()

	s.mcpServer.AddResource(catalogResource(), s.handleCatalog)
}

func (s *Server) statusSource() StatusSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Start listens on the configured address and serves until Shutdown. Bind
// failures are returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.hooks.OnServerStart(ctx, ln.Addr().String())
	s.logger.Info("SSE endpoint ready",
		zap.String("sse", s.config.BaseURL+"/sse"),
		zap.String("message", s.config.BaseURL+"/message"))

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Shutdown closes open SSE sessions and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hooks.OnServerStop(ctx)
	if err := s.sseServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down MCP server: %w", err)
	}
	return nil
}
