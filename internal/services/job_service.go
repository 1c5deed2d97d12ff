package services

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-matching-api/internal/jobs"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

// sweepBatchSize is the number of members matched per sweep run
const sweepBatchSize = 500

// Scheduled job names
const (
	JobMatchingSweep       = "matching_sweep"
	JobEligibilityNotifier = "eligibility_notifier"
	JobStatsRefresh        = "stats_refresh"
)

type JobService struct {
	worker    *jobs.Worker
	saleSvc   *SaleService
	incomeSvc *IncomeService
}

func NewJobService(worker *jobs.Worker, saleSvc *SaleService, incomeSvc *IncomeService) *JobService {
	return &JobService{
		worker:    worker,
		saleSvc:   saleSvc,
		incomeSvc: incomeSvc,
	}
}

// Start schedules the recurring background jobs. notifyAt is the time of day,
// as an offset from local midnight, of the daily eligibility notifier.
func (s *JobService) Start(sweepInterval, statsInterval, notifyAt time.Duration) {
	s.worker.ScheduleEveryImmediate(JobMatchingSweep, sweepInterval, s.RunMatchingSweep)
	s.worker.ScheduleDaily(JobEligibilityNotifier, notifyAt, s.RunEligibilityNotifier)
	if s.incomeSvc.statsCache.Enabled() {
		s.worker.ScheduleEvery(JobStatsRefresh, statsInterval, s.RunStatsRefresh)
	}
	logger.Info("background jobs scheduled",
		"sweep_interval", sweepInterval.String(),
		"stats_interval", statsInterval.String(),
		"eligibility_notify_at", notifyAt.String())
}

// RunMatchingSweep matches members whose both legs carry an available balance
func (s *JobService) RunMatchingSweep(ctx context.Context) error {
	_, err := s.saleSvc.SweepMatches(ctx, sweepBatchSize)
	return err
}

// RunEligibilityNotifier announces every eligible record not announced yet
func (s *JobService) RunEligibilityNotifier(ctx context.Context) error {
	_, err := s.incomeSvc.NotifyNewlyEligible(ctx)
	return err
}

// RunStatsRefresh recomputes the cached admin stats
func (s *JobService) RunStatsRefresh(ctx context.Context) error {
	_, err := s.incomeSvc.RefreshStats(ctx)
	return err
}

func (s *JobService) lookup(name string) (jobs.Job, error) {
	switch name {
	case JobMatchingSweep:
		return s.RunMatchingSweep, nil
	case JobEligibilityNotifier:
		return s.RunEligibilityNotifier, nil
	case JobStatsRefresh:
		return s.RunStatsRefresh, nil
	}
	return nil, ErrNotFound
}

// Trigger runs a scheduled job immediately and waits for it
func (s *JobService) Trigger(ctx context.Context, name string) error {
	job, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.worker.RunNow(ctx, name, job)
}

// TriggerAsync queues a scheduled job on the worker pool and returns at once
func (s *JobService) TriggerAsync(name string) error {
	job, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.worker.Enqueue(name, job)
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()
	return map[string]interface{}{
		"active_jobs":    stats.ActiveJobs,
		"completed_jobs": stats.CompletedJobs,
		"failed_jobs":    stats.FailedJobs,
		"queue_length":   stats.QueueLength,
		"max_concurrent": stats.MaxConcurrent,
		"scheduled":      stats.Scheduled,
	}
}
