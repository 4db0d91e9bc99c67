// Package sweeper reclaims storage by deleting artifacts older than the
// retention threshold on a fixed interval.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/storage"
)

// Result summarizes one sweep.
type Result struct {
	At      time.Time
	Removed []string
	Kept    int
	Skipped bool
}

type Sweeper struct {
	store     *storage.ResultStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	onSweep func(Result)
}

func New(store *storage.ResultStore, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// OnSweep registers an observer called after every cycle.
func (s *Sweeper) OnSweep(fn func(Result)) {
	s.mu.Lock()
	s.onSweep = fn
	s.mu.Unlock()
}

// Run sweeps once immediately, then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	logger.Info("Storage sweeper started: retention %v, interval %v, root %s",
		s.retention, s.interval, s.store.Root())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.cycle()

		select {
		case <-ctx.Done():
			logger.Info("Storage sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) cycle() {
	result, err := s.sweep(s.now())
	if err != nil {
		logger.Error("Storage sweep failed: %v", err)
	}

	s.mu.Lock()
	fn := s.onSweep
	s.mu.Unlock()
	if fn != nil {
		fn(result)
	}
}

// Sweep deletes every artifact older than the retention threshold at now and
// returns how many were removed. A missing storage root skips the cycle.
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	result, err := s.sweep(now)
	return len(result.Removed), err
}

func (s *Sweeper) sweep(now time.Time) (Result, error) {
	result := Result{At: now}

	artifacts, err := s.store.List()
	if err != nil {
		if errors.Is(err, storage.ErrRootMissing) {
			logger.Warn("Storage root %s does not exist, skipping sweep", s.store.Root())
			result.Skipped = true
			return result, nil
		}
		return result, err
	}

	var errs []error
	for _, artifact := range artifacts {
		age := now.Sub(artifact.CreatedAt)
		if age <= s.retention {
			result.Kept++
			continue
		}

		if err := s.store.Remove(artifact.Name); err != nil {
			errs = append(errs, err)
			result.Kept++
			continue
		}
		logger.Info("Deleted expired file: %s (age %v)", artifact.Path, age.Round(time.Minute))
		result.Removed = append(result.Removed, artifact.Name)
	}

	logger.Debug("Sweep finished: %d removed, %d kept", len(result.Removed), result.Kept)
	return result, errors.Join(errs...)
}
