package services

import (
	"context"
	"time"

	"github.com/lissa/commissions-api/internal/jobs"
	"github.com/lissa/commissions-api/pkg/logger"
)

type JobService struct {
	worker     *jobs.Worker
	fortnights *FortnightService
	classifier *ClassifierService
}

func NewJobService(worker *jobs.Worker, fortnights *FortnightService, classifier *ClassifierService) *JobService {
	return &JobService{
		worker:     worker,
		fortnights: fortnights,
		classifier: classifier,
	}
}

// Task names reported by the job status endpoint
const (
	TaskLiveProjection = "live_projection"
	TaskAgingScan      = "aging_scan"
)

// Schedule registers the live projection refresh and the daily aging scan
func (s *JobService) Schedule(recalcInterval time.Duration, agingCron string) error {
	s.worker.ScheduleEveryImmediate(TaskLiveProjection, recalcInterval, s.fortnights.RefreshLive)

	return s.worker.ScheduleCron(TaskAgingScan, agingCron, func(ctx context.Context) error {
		n, err := s.classifier.NotifyAging(ctx)
		if err != nil {
			return err
		}
		logger.Info("[JobService] aging scan finished", "aged_items", n)
		return nil
	})
}

// TriggerRecalculate refreshes the live projection without waiting for the next tick
func (s *JobService) TriggerRecalculate() {
	s.worker.Enqueue(TaskLiveProjection, s.fortnights.RefreshLive)
}

// GetStatus reports the worker counters and the run history of each task
func (s *JobService) GetStatus() jobs.WorkerStats {
	return s.worker.GetStats()
}
