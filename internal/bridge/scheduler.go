package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Syncer runs one reconciliation pass.
type Syncer interface {
	Sync(ctx context.Context) Result
}

// Scheduler triggers sync passes on a fixed interval. A tick that fires
// while the previous pass is still running is dropped.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *zap.Logger
	cron     *cron.Cron

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Intervals below one second are rounded
// up to one second.
func NewScheduler(syncer Syncer, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start begins ticking. Passes run with a context derived from ctx that is
// cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("sync interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.syncer.Sync(runCtx)
	}))
	s.cron.Start()

	s.logger.Info("sync scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the in-flight pass, if any, and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("sync scheduler stopped")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
