package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/RezaEskandarii/pgqueue/internal/state"
	"github.com/RezaEskandarii/pgqueue/types"
)

// PickFilter narrows which pending rows PickNextJob may claim. Zero values mean no restriction.
type PickFilter struct {
	QueueName         string
	AllowedQueueNames []string
	MultiStepID       string
	// IgnoreMaxConcurrency bypasses the queue's concurrency ceiling.
	IgnoreMaxConcurrency bool
}

// JobStore defines the claim and release protocol over the job table.
type JobStore interface {
	// AddJob inserts a pending job and returns its id. The payload is stored as is.
	AddJob(ctx context.Context, queueName string, payload json.RawMessage, opts types.AddJobOptions) (int64, error)

	// AddJobs inserts a batch of jobs in one transaction.
	AddJobs(ctx context.Context, jobs []types.NewJob) error

	// PickNextJob claims the oldest eligible job, or returns nil when none is eligible.
	PickNextJob(ctx context.Context, filter PickFilter) (*types.Job, error)

	ReleaseJob(ctx context.Context, jobID int64, result types.ReleaseResult) error

	// KeepJobAlive extends the lease of a processing job.
	KeepJobAlive(ctx context.Context, jobID int64) error

	// CheckAndReleaseTimedOutJobs resolves every processing job whose lease expired
	// and returns how many were released.
	CheckAndReleaseTimedOutJobs(ctx context.Context) (int, error)

	// ResumeJob moves a paused job back to pending.
	ResumeJob(ctx context.Context, jobID int64) error

	FindByID(ctx context.Context, jobID int64) (*types.Job, error)

	RemoveByID(ctx context.Context, jobID int64) error

	FetchJobs(ctx context.Context, filter types.JobFilter, page int, pageSize int) (*types.PaginationResult[types.Job], error)

	CountAllJobsGroupedByStatus(ctx context.Context) (map[state.JobStatus]int, error)

	// WithTx returns a store whose operations run inside tx.
	WithTx(tx *sql.Tx) JobStore

	// InTx runs fn against a store bound to one transaction. A store already bound
	// to a transaction runs fn inline.
	InTx(ctx context.Context, fn func(JobStore) error) error
}
