// Package scheduler runs the periodic housekeeping jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"finscholars/backend/utils"
)

// SessionSweeper drops sessions whose expiry has passed.
type SessionSweeper interface {
	SweepExpired() int
}

// CacheEvicter drops user snapshots older than the cache TTL.
type CacheEvicter interface {
	EvictExpired(ctx context.Context) (int, error)
}

type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  SessionSweeper
	cache     CacheEvicter
	log       *utils.Logger

	sessionEvery time.Duration
	cacheEvery   time.Duration
}

func New(sessions SessionSweeper, cache CacheEvicter, sessionEvery, cacheEvery time.Duration, log *utils.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:    s,
		sessions:     sessions,
		cache:        cache,
		log:          log.With("component", "scheduler"),
		sessionEvery: sessionEvery,
		cacheEvery:   cacheEvery,
	}
}

// Start registers the sweeps and runs them in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.sessionEvery).WaitForSchedule().Do(s.SweepSessions); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	if _, err := s.scheduler.Every(s.cacheEvery).WaitForSchedule().Do(s.EvictUsers); err != nil {
		return fmt.Errorf("schedule cache eviction: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "session_sweep", s.sessionEvery.String(), "cache_sweep", s.cacheEvery.String())
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) SweepSessions() {
	if n := s.sessions.SweepExpired(); n > 0 {
		s.log.Info("expired sessions removed", "count", n)
	}
}

func (s *Scheduler) EvictUsers() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := s.cache.EvictExpired(ctx)
	if err != nil {
		s.log.Error("user cache eviction failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("expired user snapshots removed", "count", n)
	}
}
