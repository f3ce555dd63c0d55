package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
)

// Queue is a JobStore scoped to one queue name.
type Queue struct {
	jobs store.JobStore
	name string
}

func NewQueue(jobStore store.JobStore, name string) *Queue {
	return &Queue{jobs: jobStore, name: name}
}

func (q *Queue) Name() string {
	return q.name
}

// WithTx returns a Queue whose operations run inside tx.
func (q *Queue) WithTx(tx *sql.Tx) *Queue {
	return &Queue{jobs: q.jobs.WithTx(tx), name: q.name}
}

// AddJob marshals payload to JSON and inserts it.
func (q *Queue) AddJob(ctx context.Context, payload any, opts types.AddJobOptions) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return q.jobs.AddJob(ctx, q.name, raw, opts)
}

func (q *Queue) PickNextJob(ctx context.Context, ignoreMaxConcurrency bool) (*types.Job, error) {
	return q.jobs.PickNextJob(ctx, store.PickFilter{
		QueueName:            q.name,
		IgnoreMaxConcurrency: ignoreMaxConcurrency,
	})
}

func (q *Queue) ReleaseJob(ctx context.Context, jobID int64, result types.ReleaseResult) error {
	return q.jobs.ReleaseJob(ctx, jobID, result)
}

func (q *Queue) KeepJobAlive(ctx context.Context, jobID int64) error {
	return q.jobs.KeepJobAlive(ctx, jobID)
}

func (q *Queue) ResumeJob(ctx context.Context, jobID int64) error {
	return q.jobs.ResumeJob(ctx, jobID)
}

// KeepAlive refreshes the job's lease every interval until stop is called or ctx ends.
func (q *Queue) KeepAlive(ctx context.Context, jobID int64, every time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := q.jobs.KeepJobAlive(ctx, jobID); err != nil {
					slog.Warn("keep alive failed", "job_id", jobID, "queue", q.name, "error", err)
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
