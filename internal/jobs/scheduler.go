package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler publishes an assign batch job on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	publisher Publisher
	limit     int
	log       zerolog.Logger
}

// NewScheduler parses spec (standard 5-field cron syntax or descriptors such
// as "@every 15m") and returns a stopped scheduler.
func NewScheduler(spec string, publisher Publisher, limit int, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		publisher: publisher,
		limit:     limit,
		log:       log,
	}
	if _, err := s.cron.AddFunc(spec, s.publish); err != nil {
		return nil, fmt.Errorf("NewScheduler: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.log.Info().Msg("Auto-assign scheduler started")
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits for a running publish to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) publish() {
	job := &AssignBatchJob{Limit: s.limit, Trigger: TriggerSchedule}
	if err := s.publisher.PublishAssignBatch(context.Background(), job); err != nil {
		s.log.Error().Err(err).Msg("Failed to publish scheduled assign batch job")
		return
	}
	s.log.Info().Str("job_id", job.JobID).Msg("Scheduled assign batch job published")
}
