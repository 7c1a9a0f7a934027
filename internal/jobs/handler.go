package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/categorize"
)

// NewAssignHandler returns a JobHandler that runs client.AssignAll against store.
func NewAssignHandler(client *categorize.Client, store categorize.BatchStore, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job *AssignBatchJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("trigger", string(job.Trigger)).
			Int("limit", job.Limit).
			Msg("Processing assign batch job")

		result, err := client.AssignAll(ctx, store, job.Limit)
		job.Result = &result
		if err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("Assign batch job interrupted")
			return err
		}

		log.Info().
			Str("job_id", job.JobID).
			Int("assigned", result.Assigned).
			Int("failed", len(result.Failed)).
			Msg("Assign batch job completed")
		return nil
	}
}
