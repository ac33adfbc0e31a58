package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "remindbot/pkg/logx"
)

const (
	DefaultPollInterval = time.Minute
	DefaultTickTimeout  = 45 * time.Second
)

type Config struct {
	Enabled      bool
	PollInterval time.Duration
	TickTimeout  time.Duration
	Options      Options
}

// Service runs Scheduler.Tick on a fixed interval through cron.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	sched   *Scheduler
	log     logx.Logger
	c       *cron.Cron
	baseCtx context.Context

	// busy holds a token while a tick runs; ticks never overlap.
	busy chan struct{}
}

func NewService(cfg Config, sched *Scheduler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	sched.SetOptions(cfg.Options)
	return &Service{
		cfg:   cfg.normalized(),
		sched: sched,
		log:   log,
		busy:  make(chan struct{}, 1),
	}
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = DefaultTickTimeout
	}
	return c
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Start schedules ticks every PollInterval. ctx only supplies values to tick
// contexts; cancel it and ticks still finish, bounded by TickTimeout.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	// Kept while disabled so Apply can enable the timer later.
	s.baseCtx = context.WithoutCancel(ctx)
	if !s.cfg.Enabled {
		s.log.Info("reminders disabled")
		return nil
	}
	return s.startLocked()
}

func (s *Service) startLocked() error {
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.log}),
		cron.SkipIfStillRunning(cronLogger{s.log}),
	))
	spec := fmt.Sprintf("@every %s", s.cfg.PollInterval)
	if _, err := c.AddFunc(spec, func() { s.runTick("cron") }); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	c.Start()
	s.c = c
	s.log.Info("reminder scheduler started",
		logx.Duration("interval", s.cfg.PollInterval),
		logx.Duration("lead", s.sched.Options().Lead),
		logx.Duration("tolerance", s.sched.Options().Tolerance),
		logx.String("missed_policy", s.sched.Options().MissedPolicy),
	)
	return nil
}

// Stop halts the timer and waits for a running tick until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.baseCtx = nil
	s.mu.Unlock()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			return fmt.Errorf("reminder scheduler stop: %w", ctx.Err())
		}
	}
	// RunNow ticks are outside cron; wait for the token too.
	select {
	case s.busy <- struct{}{}:
		<-s.busy
	case <-ctx.Done():
		return fmt.Errorf("reminder scheduler stop: %w", ctx.Err())
	}
	if c != nil {
		s.log.Info("reminder scheduler stopped")
	}
	return nil
}

// Apply swaps in a new config. The timer restarts when the interval or the
// enabled flag changes.
func (s *Service) Apply(cfg Config) error {
	cfg = cfg.normalized()
	s.sched.SetOptions(cfg.Options)

	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	if s.baseCtx == nil || (old.PollInterval == cfg.PollInterval && old.Enabled == cfg.Enabled) {
		s.mu.Unlock()
		return nil
	}
	c := s.c
	s.c = nil
	s.mu.Unlock()

	// A running job takes s.mu, so wait for it unlocked.
	if c != nil {
		<-c.Stop().Done()
	}
	if !cfg.Enabled {
		s.log.Info("reminders disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || s.baseCtx == nil {
		return nil
	}
	return s.startLocked()
}

// Lead is how long before its scheduled time a reminder is announced.
func (s *Service) Lead() time.Duration { return s.sched.Options().Lead }

// MinNotice is the shortest distance from now a new reminder needs so a tick
// still lands inside its window. It is zero under the late policy.
func (s *Service) MinNotice() time.Duration {
	s.mu.Lock()
	poll := s.cfg.PollInterval
	s.mu.Unlock()
	o := s.sched.Options()
	if o.MissedPolicy == MissedLate {
		return 0
	}
	return max(o.Lead-o.Tolerance+poll, 0)
}

// RunNow runs one tick on the caller's goroutine. It returns ErrBusy when a
// tick is already in progress.
func (s *Service) RunNow(ctx context.Context) (TickReport, error) {
	select {
	case s.busy <- struct{}{}:
	default:
		return TickReport{}, ErrBusy
	}
	defer func() { <-s.busy }()
	return s.tick(ctx)
}

var ErrBusy = errors.New("reminder tick already running")

func (s *Service) runTick(trigger string) {
	select {
	case s.busy <- struct{}{}:
	default:
		s.log.Debug("tick skipped, previous still running", logx.String("trigger", trigger))
		return
	}
	defer func() { <-s.busy }()

	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	_, _ = s.tick(base)
}

func (s *Service) tick(parent context.Context) (TickReport, error) {
	s.mu.Lock()
	timeout := s.cfg.TickTimeout
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	rep, err := s.sched.Tick(ctx)
	fields := []logx.Field{
		logx.String("tick", rep.ID),
		logx.Int("scanned", rep.Scanned),
		logx.Int("dispatched", rep.Dispatched),
		logx.Int("skipped", rep.Skipped()),
		logx.Int("missed", rep.Missed),
		logx.Duration("took", rep.Duration),
	}
	if err != nil {
		s.log.Warn("reminder tick failed", append(fields, logx.Err(err))...)
		return rep, err
	}
	if rep.Dispatched > 0 || rep.Skipped() > 0 {
		s.log.Info("reminder tick", fields...)
	} else {
		s.log.Debug("reminder tick", fields...)
	}
	return rep, nil
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
