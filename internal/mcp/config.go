package mcp

import (
	"fmt"
	"time"
)

// Config defines configuration for the bridge's MCP server
type Config struct {
	ServerName    string
	ServerVersion string
	// Addr is the listen address, e.g. ":3001".
	Addr string
	// BaseURL is the externally reachable origin advertised to SSE clients
	// in the endpoint event.
	BaseURL     string
	ToolTimeout time.Duration
	KeepAlive   time.Duration
	RateLimit   RateLimitConfig
}

// RateLimitConfig defines per-session rate limiting
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the configuration for a server listening on port.
func DefaultConfig(port int) Config {
	return Config{
		ServerName:    "skillforge-mcp-bridge",
		ServerVersion: "1.0.0",
		Addr:          fmt.Sprintf(":%d", port),
		BaseURL:       fmt.Sprintf("http://localhost:%d", port),
		ToolTimeout:   150 * time.Second,
		KeepAlive:     30 * time.Second,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}
