package hooks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	sentryutil "github.com/skillforge/skillbridge/internal/sentry"
)

// Hooks defines lifecycle callbacks for the bridge
type Hooks interface {
	OnServerStart(ctx context.Context, addr string)
	OnServerStop(ctx context.Context)
	OnSessionStart(ctx context.Context, sessionID string)
	OnSessionEnd(ctx context.Context, sessionID string)
	OnToolCall(ctx context.Context, sessionID, toolName string, duration time.Duration, failed bool, err error)
	OnResourceRead(ctx context.Context, sessionID, uri string, duration time.Duration, err error)
	OnSync(ctx context.Context, active, registered, discovered int, err error)
}

// CompositeHooks fans every callback out to a list of hooks.
type CompositeHooks struct {
	hooks []Hooks
	mutex sync.RWMutex
}

// NewCompositeHooks creates a new composite hooks instance
func NewCompositeHooks(hooks ...Hooks) *CompositeHooks {
	return &CompositeHooks{hooks: hooks}
}

// AddHooks adds more hooks to the composite
func (c *CompositeHooks) AddHooks(hooks ...Hooks) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.hooks = append(c.hooks, hooks...)
}

func (c *CompositeHooks) each(fn func(Hooks)) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, h := range c.hooks {
		fn(h)
	}
}

func (c *CompositeHooks) OnServerStart(ctx context.Context, addr string) {
	c.each(func(h Hooks) { h.OnServerStart(ctx, addr) })
}

func (c *CompositeHooks) OnServerStop(ctx context.Context) {
	c.each(func(h Hooks) { h.OnServerStop(ctx) })
}

func (c *CompositeHooks) OnSessionStart(ctx context.Context, sessionID string) {
	c.each(func(h Hooks) { h.OnSessionStart(ctx, sessionID) })
}

func (c *CompositeHooks) OnSessionEnd(ctx context.Context, sessionID string) {
	c.each(func(h Hooks) { h.OnSessionEnd(ctx, sessionID) })
}

func (c *CompositeHooks) OnToolCall(ctx context.Context, sessionID, toolName string, duration time.Duration, failed bool, err error) {
	c.each(func(h Hooks) { h.OnToolCall(ctx, sessionID, toolName, duration, failed, err) })
}

func (c *CompositeHooks) OnResourceRead(ctx context.Context, sessionID, uri string, duration time.Duration, err error) {
	c.each(func(h Hooks) { h.OnResourceRead(ctx, sessionID, uri, duration, err) })
}

func (c *CompositeHooks) OnSync(ctx context.Context, active, registered, discovered int, err error) {
	c.each(func(h Hooks) { h.OnSync(ctx, active, registered, discovered, err) })
}

// LoggingHooks logs every event
type LoggingHooks struct {
	logger *zap.Logger
}

// NewLoggingHooks creates logging hooks
func NewLoggingHooks(logger *zap.Logger) *LoggingHooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHooks{logger: logger}
}

func (h *LoggingHooks) OnServerStart(ctx context.Context, addr string) {
	h.logger.Info("MCP server listening", zap.String("addr", addr))
}

func (h *LoggingHooks) OnServerStop(ctx context.Context) {
	h.logger.Info("MCP server stopping")
}

func (h *LoggingHooks) OnSessionStart(ctx context.Context, sessionID string) {
	h.logger.Info("agent session opened", zap.String("session", sessionID))
}

func (h *LoggingHooks) OnSessionEnd(ctx context.Context, sessionID string) {
	h.logger.Info("agent session closed", zap.String("session", sessionID))
}

func (h *LoggingHooks) OnToolCall(ctx context.Context, sessionID, toolName string, duration time.Duration, failed bool, err error) {
	fields := []zap.Field{
		zap.String("session", sessionID),
		zap.String("tool", toolName),
		zap.Duration("duration", duration),
	}
	switch {
	case err != nil:
		h.logger.Error("tool call errored", append(fields, zap.Error(err))...)
	case failed:
		h.logger.Warn("tool call returned an error result", fields...)
	default:
		h.logger.Debug("tool call succeeded", fields...)
	}
}

func (h *LoggingHooks) OnResourceRead(ctx context.Context, sessionID, uri string, duration time.Duration, err error) {
	if err != nil {
		h.logger.Warn("resource read failed", zap.String("session", sessionID), zap.String("uri", uri), zap.Error(err))
		return
	}
	h.logger.Debug("resource read", zap.String("session", sessionID), zap.String("uri", uri), zap.Duration("duration", duration))
}

func (h *LoggingHooks) OnSync(ctx context.Context, active, registered, discovered int, err error) {
	if err != nil {
		h.logger.Warn("sync pass failed, keeping previous tools", zap.Error(err))
	}
}

// SentryHooks records events as Sentry breadcrumbs and errors
type SentryHooks struct{}

// NewSentryHooks creates Sentry hooks
func NewSentryHooks() *SentryHooks {
	return &SentryHooks{}
}

func (h *SentryHooks) OnServerStart(ctx context.Context, addr string) {
	sentryutil.AddBreadcrumb("server", "MCP server started", map[string]interface{}{"addr": addr})
}

func (h *SentryHooks) OnServerStop(ctx context.Context) {
	sentryutil.AddBreadcrumb("server", "MCP server stopped", nil)
}

func (h *SentryHooks) OnSessionStart(ctx context.Context, sessionID string) {
	sentryutil.AddBreadcrumb("session", "Session started", map[string]interface{}{"session_id": sessionID})
}

func (h *SentryHooks) OnSessionEnd(ctx context.Context, sessionID string) {
	sentryutil.AddBreadcrumb("session", "Session ended", map[string]interface{}{"session_id": sessionID})
}

func (h *SentryHooks) OnToolCall(ctx context.Context, sessionID, toolName string, duration time.Duration, failed bool, err error) {
	data := map[string]interface{}{
		"session_id": sessionID,
		"tool":       toolName,
		"duration":   duration.String(),
		"failed":     failed || err != nil,
	}
	sentryutil.AddBreadcrumb("tool", fmt.Sprintf("Tool call: %s", toolName), data)
	if err != nil {
		sentryutil.CaptureError(err, map[string]string{"tool": toolName, "session_id": sessionID}, nil)
	}
}

func (h *SentryHooks) OnResourceRead(ctx context.Context, sessionID, uri string, duration time.Duration, err error) {
	data := map[string]interface{}{
		"session_id": sessionID,
		"uri":        uri,
		"duration":   duration.String(),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	sentryutil.AddBreadcrumb("resource", fmt.Sprintf("Resource read: %s", uri), data)
}

func (h *SentryHooks) OnSync(ctx context.Context, active, registered, discovered int, err error) {
	if err != nil {
		sentryutil.CaptureMessage("skill sync failed", sentry.LevelWarning, map[string]string{"component": "sync"})
		return
	}
	sentryutil.AddBreadcrumb("sync", "Skill sync complete", map[string]interface{}{
		"active":     active,
		"registered": registered,
		"discovered": discovered,
	})
}

// MetricsHooks keeps in-process counters served by the health endpoint.
type MetricsHooks struct {
	startTime      time.Time
	activeSessions atomic.Int64
	toolCalls      atomic.Int64
	toolFailures   atomic.Int64
	syncPasses     atomic.Int64
	syncFailures   atomic.Int64
}

// Metrics is a point-in-time copy of MetricsHooks counters.
type Metrics struct {
	Uptime         time.Duration `json:"-"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	ActiveSessions int64         `json:"active_sessions"`
	ToolCalls      int64         `json:"tool_calls"`
	ToolFailures   int64         `json:"tool_failures"`
	SyncPasses     int64         `json:"sync_passes"`
	SyncFailures   int64         `json:"sync_failures"`
}

// NewMetricsHooks creates metrics hooks
func NewMetricsHooks() *MetricsHooks {
	return &MetricsHooks{startTime: time.Now()}
}

func (h *MetricsHooks) OnServerStart(ctx context.Context, addr string) {}

func (h *MetricsHooks) OnServerStop(ctx context.Context) {}

func (h *MetricsHooks) OnSessionStart(ctx context.Context, sessionID string) {
	h.activeSessions.Add(1)
}

func (h *MetricsHooks) OnSessionEnd(ctx context.Context, sessionID string) {
	h.activeSessions.Add(-1)
}

func (h *MetricsHooks) OnToolCall(ctx context.Context, sessionID, toolName string, duration time.Duration, failed bool, err error) {
	h.toolCalls.Add(1)
	if failed || err != nil {
		h.toolFailures.Add(1)
	}
}

func (h *MetricsHooks) OnResourceRead(ctx context.Context, sessionID, uri string, duration time.Duration, err error) {
}

func (h *MetricsHooks) OnSync(ctx context.Context, active, registered, discovered int, err error) {
	h.syncPasses.Add(1)
	if err != nil {
		h.syncFailures.Add(1)
	}
}

// Snapshot returns the current counters.
func (h *MetricsHooks) Snapshot() Metrics {
	uptime := time.Since(h.startTime)
	return Metrics{
		Uptime:         uptime,
		UptimeSeconds:  int64(uptime.Seconds()),
		ActiveSessions: h.activeSessions.Load(),
		ToolCalls:      h.toolCalls.Load(),
		ToolFailures:   h.toolFailures.Load(),
		SyncPasses:     h.syncPasses.Load(),
		SyncFailures:   h.syncFailures.Load(),
	}
}
