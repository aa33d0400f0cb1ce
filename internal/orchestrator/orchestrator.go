// Package orchestrator drives processing cycles: enabled sources in priority
// order, one bounded batch per source, commit plus mark-processed per source.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Siacelp-NTT/Crawler-database/internal/config"
	"github.com/Siacelp-NTT/Crawler-database/internal/model"
	"github.com/Siacelp-NTT/Crawler-database/internal/normalize"
	"github.com/Siacelp-NTT/Crawler-database/internal/processor"
)

// ErrCycleRunning is returned when a cycle request arrives while a previous
// cycle is still in flight. The request is dropped, not queued.
var ErrCycleRunning = errors.New("processing cycle already running")

// CycleStats is the aggregate summary of one cycle.
type CycleStats struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// SourceStats accumulates per-source counters across cycles, for monitoring.
type SourceStats struct {
	Processed  int
	Succeeded  int
	Failed     int
	Skipped    int
	LastErrors []string
	LastRun    time.Time
}

// Orchestrator owns the cycle loop state: the processor per source, the
// re-entrancy guard and the per-source stats.
type Orchestrator struct {
	cfg        *config.Config
	store      model.Store
	processors []*processor.Processor // enabled sources, priority order
	logger     *slog.Logger

	running atomic.Bool

	mu    sync.Mutex
	stats map[string]*SourceStats
}

// New builds an orchestrator with one processor per enabled source, ordered
// by ascending priority (declaration order breaks ties). Configuration is
// process-lifetime-immutable; a config change requires a restart.
func New(cfg *config.Config, store model.Store, ai normalize.Completer, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		store:  store,
		logger: logger,
		stats:  make(map[string]*SourceStats),
	}
	for _, sc := range cfg.EnabledByPriority() {
		o.processors = append(o.processors, processor.New(sc, &cfg.Global, store, ai, logger))
		o.stats[sc.Name] = &SourceStats{}
	}
	return o
}

// RunCycle runs one full cycle. A call arriving while another cycle runs is
// dropped with ErrCycleRunning; the drop is logged, not an error condition
// for the caller's health. A batch-fetch or mark-processed failure aborts the
// rest of the cycle (the next scheduled cycle proceeds normally).
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleStats, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Info("cycle request dropped, previous cycle still running")
		return CycleStats{}, ErrCycleRunning
	}
	defer o.running.Store(false)

	start := time.Now()
	var agg CycleStats

	for _, proc := range o.processors {
		if ctx.Err() != nil {
			break
		}

		batch, err := o.store.FetchUnprocessedBatch(ctx, proc.Name(), o.cfg.Global.BatchSize)
		if err != nil {
			agg.Duration = time.Since(start)
			return agg, fmt.Errorf("fetch batch for %s: %w", proc.Name(), err)
		}
		if len(batch) == 0 {
			o.logger.Debug("no unprocessed records", "source", proc.Name())
			continue
		}

		res := proc.Process(ctx, batch)

		// Mark every attempted record, including validation failures: a
		// permanently-unparseable record must not be retried forever.
		if len(res.Attempted) > 0 {
			if err := o.store.MarkProcessed(ctx, res.Attempted); err != nil {
				agg.Duration = time.Since(start)
				return agg, fmt.Errorf("mark processed for %s: %w", proc.Name(), err)
			}
		}

		o.record(proc.Name(), res)
		agg.Processed += res.Processed
		agg.Succeeded += res.Succeeded
		agg.Failed += res.Failed
		agg.Skipped += res.Skipped

		o.logger.Info("processed source batch",
			"source", proc.Name(),
			"processed", res.Processed,
			"succeeded", res.Succeeded,
			"failed", res.Failed,
			"skipped", res.Skipped,
		)
	}

	agg.Duration = time.Since(start)
	o.logger.Info("cycle complete",
		"processed", agg.Processed,
		"succeeded", agg.Succeeded,
		"failed", agg.Failed,
		"skipped", agg.Skipped,
		"duration", agg.Duration.String(),
	)
	return agg, nil
}

func (o *Orchestrator) record(source string, res processor.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.stats[source]
	s.Processed += res.Processed
	s.Succeeded += res.Succeeded
	s.Failed += res.Failed
	s.Skipped += res.Skipped
	s.LastErrors = res.Errors
	s.LastRun = time.Now()
}

// Stats returns a snapshot of per-source counters.
func (o *Orchestrator) Stats() map[string]SourceStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]SourceStats, len(o.stats))
	for name, s := range o.stats {
		out[name] = *s
	}
	return out
}

// ResetStats clears all per-source counters.
func (o *Orchestrator) ResetStats() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for name := range o.stats {
		o.stats[name] = &SourceStats{}
	}
}
