// Daily pipeline trigger
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cubesat-nightly/internal/config"
	"cubesat-nightly/internal/pipeline"
)

// Trigger starts one pipeline run. Satisfied by *pipeline.Runner.
type Trigger interface {
	Run(ctx context.Context, trigger string) (*pipeline.RunSummary, error)
}

// Scheduler fires the pipeline once per day at a configured HH:MM. The cron
// entry fires at most once per matching minute and does not drift; a run
// skipped because another run is in flight simply waits for the next day.
type Scheduler struct {
	cron   *cron.Cron
	runner Trigger
	logger *slog.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	dailyAt string
}

// New creates a stopped scheduler.
func New(runner Trigger, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		logger: logger,
	}
}

func cronSpec(dailyAt string) (string, error) {
	hour, minute, err := config.ParseDailyAt(dailyAt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Start registers the daily entry and starts the timer goroutine.
func (s *Scheduler) Start(dailyAt string) error {
	spec, err := cronSpec(dailyAt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, s.runScheduled)
	if err != nil {
		return fmt.Errorf("schedule daily run: %w", err)
	}
	s.entryID = id
	s.dailyAt = dailyAt
	s.cron.Start()
	s.logger.Info("scheduler started", "daily_at", dailyAt)
	return nil
}

// Reschedule swaps the daily entry for a new time. An in-flight run is not
// affected; the new time takes effect on the next tick.
func (s *Scheduler) Reschedule(dailyAt string) error {
	spec, err := cronSpec(dailyAt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, s.runScheduled)
	if err != nil {
		return fmt.Errorf("reschedule daily run: %w", err)
	}
	s.cron.Remove(s.entryID)
	s.entryID = id
	s.dailyAt = dailyAt
	s.logger.Info("scheduler updated", "daily_at", dailyAt)
	return nil
}

// Stop halts the timer. A run already started keeps going.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

// DailyAt returns the currently configured trigger time.
func (s *Scheduler) DailyAt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyAt
}

// NextRun returns the next scheduled fire time, zero before Start.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	return s.cron.Entry(id).Next
}

// runScheduled executes one pipeline run. Failures are logged and never
// propagate: the scheduler must survive every run outcome.
func (s *Scheduler) runScheduled() {
	sum, err := s.runner.Run(context.Background(), pipeline.TriggerScheduled)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Warn("scheduled run skipped, another run in progress")
	case err != nil:
		s.logger.Error("scheduled run failed", "error", err)
	default:
		s.logger.Info("scheduled run finished",
			"packets", sum.TotalPackets, "anomalies", sum.AnomalyCount)
	}
}
