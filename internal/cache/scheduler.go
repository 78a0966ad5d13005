package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 30 * time.Second

// Cycler runs one refresh cycle. *Cache implements it.
type Cycler interface {
	RunCycle(ctx context.Context) Outcome
}

// Scheduler drives a Cycler on a fixed period. A tick that fires while a
// cycle is still running is dropped, not queued.
type Scheduler struct {
	c        Cycler
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	warmup sync.WaitGroup
}

func NewScheduler(c Cycler, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		c:        c,
		interval: interval,
		log:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs a warm-up cycle right away and then one cycle per interval
// until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	cl := cronLogger{log: s.log}
	s.cron = cron.New(cron.WithLogger(cl))
	// The warm-up run and the ticks share one SkipIfStillRunning guard.
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { s.run(ctx) }))
	s.cron.Schedule(cron.Every(s.interval), job)

	s.warmup.Add(1)
	go func() {
		defer s.warmup.Done()
		job.Run()
	}()
	s.cron.Start()

	s.log.Info().Dur("interval", s.interval).Msg("refresh scheduler started")
	return nil
}

// Stop cancels any in-flight cycle and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.warmup.Wait()
	s.cron = nil
	s.log.Info().Msg("refresh scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	out := s.c.RunCycle(ctx)
	s.log.Debug().Str("outcome", out.Kind.String()).Msg("refresh cycle done")
}

// cronLogger adapts zerolog to cron.Logger. cron's per-run chatter goes to
// debug.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
