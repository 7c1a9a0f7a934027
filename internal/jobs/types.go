// Package jobs runs batch category assignment in the background.
package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/finance-assistant/internal/categorize"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeAssignBatch assigns categories to the next unassigned transactions.
	JobTypeAssignBatch JobType = "assign_batch"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// Trigger says who asked for a job.
type Trigger string

const (
	TriggerAPI      Trigger = "api"
	TriggerSchedule Trigger = "schedule"
)

// AssignBatchJob represents one asynchronous AssignAll run.
type AssignBatchJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Limit caps how many transactions the batch handles.
	Limit int `json:"limit"`

	// Trigger records whether the job came from the API or the scheduler.
	Trigger Trigger `json:"trigger"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result is set once the batch has run, including partial results.
	Result *categorize.BatchResult `json:"result,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// GetID returns the unique job identifier.
func (j *AssignBatchJob) GetID() string {
	return j.JobID
}

// GetType returns the job type.
func (j *AssignBatchJob) GetType() JobType {
	return JobTypeAssignBatch
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishAssignBatch enqueues a batch assignment job.
	PublishAssignBatch(ctx context.Context, job *AssignBatchJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. It may set job.Result; a returned error marks
// the job failed. Failed jobs are not retried.
type JobHandler func(ctx context.Context, job *AssignBatchJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *AssignBatchJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*AssignBatchJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*AssignBatchJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status  JobStatus
	Trigger Trigger

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
