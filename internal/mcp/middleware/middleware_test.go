package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSession struct {
	id string
}

func (f fakeSession) Initialize()                                         {}
func (f fakeSession) Initialized() bool                                   { return true }
func (f fakeSession) NotificationChannel() chan<- mcp.JSONRPCNotification { return nil }
func (f fakeSession) SessionID() string                                   { return f.id }

func withSession(id string) context.Context {
	srv := server.NewMCPServer("test", "0.0.0")
	return srv.WithContext(context.Background(), fakeSession{id: id})
}

func callRequest(name string) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func okHandler(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("ok"), nil
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next ToolHandler) ToolHandler {
			return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	h := Chain(mark("outer"), mark("inner"))(okHandler)
	_, err := h(context.Background(), callRequest("t"))

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "anonymous", SessionID(context.Background()))
	assert.Equal(t, "abc", SessionID(withSession("abc")))
}

func TestErrorRecovery(t *testing.T) {
	mw := NewErrorRecoveryMiddleware(zaptest.NewLogger(t))
	h := mw.Apply(func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("boom")
	})

	res, err := h(context.Background(), callRequest("summarize"))

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "summarize")
}

func TestTimeout(t *testing.T) {
	mw := NewTimeoutMiddleware(time.Second)
	mw.SetToolTimeout("slow", 20*time.Millisecond)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	slow := mw.Apply(func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		<-release
		return nil, ctx.Err()
	})
	res, err := slow(context.Background(), callRequest("slow"))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "did not answer within 20ms")

	fast := mw.Apply(okHandler)
	res, err = fast(context.Background(), callRequest("fast"))
	require.NoError(t, err)
	assert.Equal(t, "ok", textOf(t, res))
}

func TestTimeoutPanicReachesRecovery(t *testing.T) {
	h := Chain(
		NewErrorRecoveryMiddleware(zaptest.NewLogger(t)).Apply,
		NewTimeoutMiddleware(time.Second).Apply,
	)(func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("inside timeout goroutine")
	})

	res, err := h(context.Background(), callRequest("t"))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRateLimitPerSession(t *testing.T) {
	mw := NewRateLimitMiddleware(0.001, 2)
	h := mw.Apply(okHandler)

	a := withSession("a")
	for i := 0; i < 2; i++ {
		res, err := h(a, callRequest("t"))
		require.NoError(t, err)
		assert.False(t, res.IsError)
	}

	res, err := h(a, callRequest("t"))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(textOf(t, res), "Too many skill calls from this session"))

	res, err = h(withSession("b"), callRequest("t"))
	require.NoError(t, err)
	assert.False(t, res.IsError, "sessions are limited independently")

	assert.Equal(t, 2, mw.Sessions())
	mw.Cleanup("a")
	assert.Equal(t, 1, mw.Sessions())
}

func TestRateLimitDisabled(t *testing.T) {
	h := NewRateLimitMiddleware(0, 0).Apply(okHandler)
	for i := 0; i < 50; i++ {
		res, err := h(context.Background(), callRequest("t"))
		require.NoError(t, err)
		require.False(t, res.IsError)
	}
}

func TestLoggingPassesThrough(t *testing.T) {
	h := NewLoggingMiddleware(zaptest.NewLogger(t)).Apply(func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("handler failed")
	})

	_, err := h(context.Background(), callRequest("t"))
	assert.EqualError(t, err, "handler failed")
}
