package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepInterval is used when SweeperConfig.Interval is zero.
const DefaultSweepInterval = 5 * time.Minute

// Target names a store the [Sweeper] purges.
type Target struct {
	Name   string
	Purger Purger
}

// SweeperConfig configures a [Sweeper].
type SweeperConfig struct {
	Interval time.Duration
	// Timeout bounds a single scheduled pass. Zero means Interval.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *zap.Logger
	// OnPurge, if set, is called after each target is purged.
	OnPurge func(target string, removed int, err error)
}

// Sweeper runs PurgeExpired on its targets at a fixed interval.
// Overlapping passes are skipped rather than queued.
type Sweeper struct {
	cron     *cron.Cron
	interval time.Duration
	timeout  time.Duration
	targets  []Target
	now      func() time.Time
	log      *zap.Logger
	onPurge  func(string, int, error)

	mu      sync.Mutex
	started bool
}

// NewSweeper builds a stopped sweeper. Targets with a nil Purger are ignored.
func NewSweeper(cfg SweeperConfig, targets ...Target) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = interval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	kept := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Purger != nil {
			kept = append(kept, t)
		}
	}

	s := &Sweeper{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		interval: interval,
		timeout:  timeout,
		targets:  kept,
		now:      now,
		log:      log.Named("sweeper"),
		onPurge:  cfg.OnPurge,
	}
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.scheduled))
	return s
}

func (s *Sweeper) scheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// RunOnce purges every target once and returns the total number of removed
// entries. A failing target does not stop the others; their errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	total := 0
	var errs []error
	for _, t := range s.targets {
		n, err := t.Purger.PurgeExpired(ctx, now)
		if s.onPurge != nil {
			s.onPurge(t.Name, n, err)
		}
		if err != nil {
			s.log.Warn("purge failed", zap.String("target", t.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("purge %s: %w", t.Name, err))
			continue
		}
		total += n
		if n > 0 {
			s.log.Debug("purged expired entries", zap.String("target", t.Name), zap.Int("removed", n))
		}
	}
	return total, errors.Join(errs...)
}

// Start runs RunOnce every interval in the background. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	s.log.Info("sweeper started", zap.Duration("interval", s.interval), zap.Int("targets", len(s.targets)))
}

// Stop halts scheduling and waits for a running pass to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
