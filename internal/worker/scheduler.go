package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leaderboard-rewards/internal/config"
)

// Distributor runs a reward distribution. The scheduler and the
// administrative HTTP trigger share this single entry point.
type Distributor interface {
	DistributeWeeklyRewards(ctx context.Context) error
}

// Scheduler fires the weekly reward distribution on a cron schedule
type Scheduler struct {
	distributor Distributor
	config      *config.SchedulerConfig
	logger      *slog.Logger
	cron        *cron.Cron
	mu          sync.Mutex
	running     bool
}

// NewScheduler creates a new distribution scheduler
func NewScheduler(distributor Distributor, cfg *config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		distributor: distributor,
		config:      cfg,
		logger:      logger,
		cron:        cron.New(),
	}
}

// Start registers the cron entry and begins the schedule
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.Cron, s.RunOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("distribution scheduler started", "cron", s.config.Cron)
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	<-s.cron.Stop().Done()
	s.running = false

	s.logger.Info("distribution scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce performs a single distribution run (also used by the cron
// entry). Errors are logged, not propagated: the next scheduled run or
// the administrative trigger retries.
func (s *Scheduler) RunOnce() {
	s.logger.Info("running weekly reward distribution")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	if err := s.distributor.DistributeWeeklyRewards(ctx); err != nil {
		s.logger.Error("weekly reward distribution failed", "error", err)
		return
	}

	s.logger.Info("weekly reward distribution completed", "duration", time.Since(start))
}
