// Package scheduler wires the cron jobs that trigger processing cycles and
// the daily AI budget reset.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Siacelp-NTT/Crawler-database/internal/ai"
	"github.com/Siacelp-NTT/Crawler-database/internal/orchestrator"
)

// Scheduler runs the orchestrator on a fixed interval and resets the AI
// budget at midnight. Overlapping cycle triggers are dropped by the
// orchestrator's own guard.
type Scheduler struct {
	cron     *cron.Cron
	orch     *orchestrator.Orchestrator
	budget   *ai.Budget
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler that triggers a cycle every interval.
func New(orch *orchestrator.Orchestrator, budget *ai.Budget, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		orch:     orch,
		budget:   budget,
		interval: interval,
		logger:   logger,
	}
}

// Run registers the jobs, fires one immediate cycle, and blocks until ctx is
// cancelled (graceful shutdown). Returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.runCycle(ctx) }); err != nil {
		return fmt.Errorf("register cycle job: %w", err)
	}
	if s.budget != nil {
		if _, err := s.cron.AddFunc("@midnight", func() {
			s.budget.Reset()
			s.logger.Info("ai daily budget reset")
		}); err != nil {
			return fmt.Errorf("register budget reset job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "interval", s.interval.String())

	// Populate immediately instead of waiting for the first tick.
	s.runCycle(ctx)

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	stopped := s.cron.Stop()
	<-stopped.Done()
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.orch.RunCycle(ctx); err != nil && !errors.Is(err, orchestrator.ErrCycleRunning) {
		s.logger.Error("cycle failed", "error", err)
	}
}
