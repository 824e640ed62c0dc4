// Package sweeper deletes expired browser sessions from durable storage on a timer.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger removes session entries that expired more than grace ago.
type Purger interface {
	PurgeExpired(ctx context.Context, grace time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

type Config struct {
	Interval time.Duration
	// Grace keeps recently expired sessions around so a racing request still sees them.
	Grace time.Duration
	// Timeout bounds one purge.
	Timeout time.Duration
}

type Sweeper struct {
	cfg  Config
	repo Purger
	log  *slog.Logger

	readyMu sync.RWMutex
	ready   bool

	// failures counts consecutive failed sweeps; it drives the backoff.
	failures int
	sleep    func(ctx context.Context, d time.Duration) bool
}

func New(cfg Config, repo Purger, log *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{cfg: cfg, repo: repo, log: log, sleep: sleepCtx}
}

// Run sweeps once immediately, then every Interval until ctx is done.
// After a failure the next attempt waits for ExponentialBackoff instead.
func (s *Sweeper) Run(ctx context.Context) error {
	s.setReady(true)
	defer s.setReady(false)

	for {
		wait := s.cfg.Interval
		if _, err := s.SweepOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			wait = ExponentialBackoff(s.failures - 1)
			s.log.Warn("session sweep failed", "err", err, "attempt", s.failures, "retry_in", wait.String())
		}

		if !s.sleep(ctx, wait) {
			break
		}
	}

	s.log.Info("sweeper received shutdown signal")
	return nil
}

// SweepOnce runs one purge and returns how many sessions it removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	n, err := s.repo.PurgeExpired(sweepCtx, s.cfg.Grace)
	if err != nil {
		s.failures++
		return 0, err
	}

	s.failures = 0
	if n > 0 {
		s.log.Info("expired sessions purged", "count", n)
	}
	return n, nil
}

func (s *Sweeper) Ready() bool {
	s.readyMu.RLock()
	defer s.readyMu.RUnlock()
	return s.ready
}

func (s *Sweeper) setReady(v bool) {
	s.readyMu.Lock()
	s.ready = v
	s.readyMu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
