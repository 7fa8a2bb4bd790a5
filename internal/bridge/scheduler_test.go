package bridge

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type countingSyncer struct {
	calls   atomic.Int32
	lastCtx atomic.Value
}

func (c *countingSyncer) Sync(ctx context.Context) Result {
	c.calls.Add(1)
	c.lastCtx.Store(ctx)
	return Result{}
}

func TestSchedulerTicks(t *testing.T) {
	syncer := &countingSyncer{}
	s := NewScheduler(syncer, time.Second, zaptest.NewLogger(t))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return syncer.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	s.Stop()

	ctx := syncer.lastCtx.Load().(context.Context)
	assert.Error(t, ctx.Err(), "pass context is cancelled on stop")
}

func TestSchedulerStartTwice(t *testing.T) {
	s := NewScheduler(&countingSyncer{}, time.Minute, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	s := NewScheduler(&countingSyncer{}, 0, nil)
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}
