package types

import (
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/pgqueue/internal/state"
)

// Job is one row of the job queue. Its JSON form is the body the Dispatcher
// sends to HTTP endpoints.
type Job struct {
	JobID               int64           `json:"job_id"`
	QueueName           string          `json:"queue_name"`
	Payload             json.RawMessage `json:"payload"`
	Status              state.JobStatus `json:"status"`
	StartAfter          time.Time       `json:"start_after"`
	RetriesRemaining    int             `json:"retries_remaining"`
	CreatedAt           time.Time       `json:"created_at"`
	StatusUpdatedAt     time.Time       `json:"status_updated_at"`
	TimeoutMilliseconds *int64          `json:"timeout_milliseconds,omitempty"`
	TimeoutWithResult   *ReleaseResult  `json:"timeout_with_result,omitempty"`
}

// NewJob describes a job that has not been inserted yet.
type NewJob struct {
	QueueName string          `json:"queue_name"`
	Payload   json.RawMessage `json:"payload"`
	Options   AddJobOptions   `json:"options"`
}

// AddJobOptions tunes a single insert. Zero values fall back to the defaults:
// 10 retries and a start time of now.
type AddJobOptions struct {
	Retries    *int       `json:"retries,omitempty"`
	StartAfter *time.Time `json:"start_after,omitempty"`

	// Per-job lease override, used by multi-step queues for steps with a custom timeout.
	TimeoutMilliseconds *int64         `json:"timeout_milliseconds,omitempty"`
	TimeoutWithResult   *ReleaseResult `json:"timeout_with_result,omitempty"`
}

// JobFilter narrows FetchJobs. Empty fields match everything.
type JobFilter struct {
	QueueName string
	Statuses  []state.JobStatus
}
