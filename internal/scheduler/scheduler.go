// Package scheduler reports the aggregate snapshot on a fixed interval, in
// addition to the reports triggered by the ingestion cadence.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"weather-subscriber/internal/modules/weather/service"
	"weather-subscriber/internal/modules/weather/types"
)

type SnapshotSource interface {
	Snapshot() types.Snapshot
}

type Scheduler struct {
	scheduler *gocron.Scheduler
	source    SnapshotSource
	reporter  service.Reporter
	interval  time.Duration
	logger    *slog.Logger
}

// New returns a Scheduler. A non-positive interval disables it.
func New(interval time.Duration, source SnapshotSource, reporter service.Reporter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		reporter:  reporter,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the report job and starts the scheduler in the
// background. The first report runs one interval after Start.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduled reports disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().WaitForSchedule().Do(s.report)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduled reports enabled", "interval", s.interval.String())
	return nil
}

func (s *Scheduler) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.reporter.Report(ctx, service.ReasonScheduled, s.source.Snapshot())
}

// Stop stops the scheduler and cancels future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
