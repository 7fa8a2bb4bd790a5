package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	sentryutil "github.com/skillforge/skillbridge/internal/sentry"
)

// ToolHandler is the handler function for tools
type ToolHandler = server.ToolHandlerFunc

// Middleware is a function that wraps a ToolHandler
type Middleware func(ToolHandler) ToolHandler

// Chain composes middlewares; the first one is outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next ToolHandler) ToolHandler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// SessionID returns the id of the agent session that issued the request,
// or "anonymous" outside a session.
func SessionID(ctx context.Context) string {
	if sess := server.ClientSessionFromContext(ctx); sess != nil {
		return sess.SessionID()
	}
	return "anonymous"
}

// LoggingMiddleware logs all tool calls and traces them in Sentry
type LoggingMiddleware struct {
	logger *zap.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger *zap.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingMiddleware{logger: logger}
}

// Apply applies the logging middleware
func (m *LoggingMiddleware) Apply(next ToolHandler) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		sessionID := SessionID(ctx)
		tool := req.Params.Name

		span, ctx := sentryutil.StartSpan(ctx, fmt.Sprintf("mcp.tool.%s", tool))
		if span != nil {
			span.SetTag("tool.name", tool)
			span.SetTag("session.id", sessionID)
			defer span.Finish()
		}

		sentryutil.AddBreadcrumb("tool_call", fmt.Sprintf("Calling tool: %s", tool), map[string]interface{}{
			"session": sessionID,
		})

		m.logger.Info("tool call started", zap.String("session", sessionID), zap.String("tool", tool))

		result, err := next(ctx, req)
		duration := time.Since(start)

		switch {
		case err != nil:
			m.logger.Error("tool call failed",
				zap.String("session", sessionID),
				zap.String("tool", tool),
				zap.Duration("duration", duration),
				zap.Error(err))
			sentryutil.CaptureError(err, map[string]string{
				"tool":    tool,
				"session": sessionID,
			}, map[string]interface{}{
				"duration": duration.String(),
			})
			if span != nil {
				span.Status = sentry.SpanStatusInternalError
			}
		case result != nil && result.IsError:
			m.logger.Warn("tool call returned error result",
				zap.String("session", sessionID),
				zap.String("tool", tool),
				zap.Duration("duration", duration))
			if span != nil {
				span.Status = sentry.SpanStatusUnknown
			}
		default:
			m.logger.Info("tool call finished",
				zap.String("session", sessionID),
				zap.String("tool", tool),
				zap.Duration("duration", duration))
			if span != nil {
				span.Status = sentry.SpanStatusOK
			}
		}

		return result, err
	}
}

// RateLimitMiddleware gives every agent session its own token bucket.
// Calls over the bucket are refused with an error result, never queued.
type RateLimitMiddleware struct {
	perSecond rate.Limit
	burst     int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimitMiddleware returns a limiter allowing perSecond calls per
// session with the given burst. perSecond <= 0 turns limiting off.
func NewRateLimitMiddleware(perSecond float64, burst int) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		perSecond: rate.Limit(perSecond),
		burst:     max(burst, 1),
		buckets:   map[string]*rate.Limiter{},
	}
}

func (m *RateLimitMiddleware) bucket(session string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[session]
	if !ok {
		b = rate.NewLimiter(m.perSecond, m.burst)
		m.buckets[session] = b
	}
	return b
}

// Apply wraps next with the per-session check.
func (m *RateLimitMiddleware) Apply(next ToolHandler) ToolHandler {
	if m.perSecond <= 0 {
		return next
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		session := SessionID(ctx)
		if m.bucket(session).Allow() {
			return next(ctx, req)
		}
		sentryutil.CaptureMessage("skill call rate limited", sentry.LevelWarning, map[string]string{
			"session": session,
			"tool":    req.Params.Name,
		})
		return mcp.NewToolResultError(fmt.Sprintf(
			"Too many skill calls from this session (limit %.4g/s, burst %d). Retry %s shortly.",
			float64(m.perSecond), m.burst, req.Params.Name)), nil
	}
}

// Cleanup forgets the bucket of a session that disconnected.
func (m *RateLimitMiddleware) Cleanup(session string) {
	m.mu.Lock()
	delete(m.buckets, session)
	m.mu.Unlock()
}

// Sessions reports how many sessions currently hold a bucket.
func (m *RateLimitMiddleware) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// ErrorRecoveryMiddleware turns handler panics into error results
type ErrorRecoveryMiddleware struct {
	logger *zap.Logger
}

// NewErrorRecoveryMiddleware creates error recovery middleware
func NewErrorRecoveryMiddleware(logger *zap.Logger) *ErrorRecoveryMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorRecoveryMiddleware{logger: logger}
}

// Apply applies the error recovery middleware
func (m *ErrorRecoveryMiddleware) Apply(next ToolHandler) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				sessionID := SessionID(ctx)
				m.logger.Error("tool handler panicked",
					zap.String("session", sessionID),
					zap.String("tool", req.Params.Name),
					zap.Any("panic", r),
					zap.Stack("stack"))

				sentryutil.ReportPanic(ctx, r, map[string]interface{}{
					"tool":    req.Params.Name,
					"session": sessionID,
				})

				result = mcp.NewToolResultError(fmt.Sprintf("Internal error occurred while executing tool %s", req.Params.Name))
				err = nil
			}
		}()

		return next(ctx, req)
	}
}

// TimeoutMiddleware caps how long an agent waits on one skill call.
type TimeoutMiddleware struct {
	fallback time.Duration

	mu      sync.RWMutex
	perTool map[string]time.Duration
}

// NewTimeoutMiddleware uses fallback for every tool without its own limit.
func NewTimeoutMiddleware(fallback time.Duration) *TimeoutMiddleware {
	return &TimeoutMiddleware{fallback: fallback, perTool: map[string]time.Duration{}}
}

// SetToolTimeout overrides the limit for one tool.
func (m *TimeoutMiddleware) SetToolTimeout(tool string, d time.Duration) {
	m.mu.Lock()
	m.perTool[tool] = d
	m.mu.Unlock()
}

func (m *TimeoutMiddleware) limit(tool string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.perTool[tool]; ok {
		return d
	}
	return m.fallback
}

// Apply wraps next with the limit for the called tool.
func (m *TimeoutMiddleware) Apply(next ToolHandler) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		timeout := m.limit(req.Params.Name)
		if timeout <= 0 {
			return next(ctx, req)
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type outcome struct {
			result   *mcp.CallToolResult
			err      error
			panicked interface{}
		}
		done := make(chan outcome, 1)

		// Panics are carried back so recovery middleware further out sees
		// them on its own goroutine.
		go func() {
			defer func() {
				if p := recover(); p != nil {
					done <- outcome{panicked: p}
				}
			}()
			result, err := next(timeoutCtx, req)
			done <- outcome{result: result, err: err}
		}()

		select {
		case out := <-done:
			if out.panicked != nil {
				panic(out.panicked)
			}
			return out.result, out.err
		case <-timeoutCtx.Done():
			sentryutil.CaptureMessage("skill call timed out", sentry.LevelWarning, map[string]string{
				"tool":    req.Params.Name,
				"timeout": timeout.String(),
			})
			return mcp.NewToolResultError(fmt.Sprintf("Skill %s did not answer within %v", req.Params.Name, timeout)), nil
		}
	}
}
