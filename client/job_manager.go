package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/pgqueue/internal/message_broaker"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
)

const (
	defaultSyncBatchSize     = 1000
	defaultSyncFlushInterval = 20 * time.Second
)

// JobManager is the producer entry point. With a broker, jobs are published first
// and written to the database in batches by the sync worker; without one they are
// inserted directly.
type JobManager struct {
	jobs          store.JobStore
	broker        message_broaker.MessageBroker
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration
}

func NewJobManager(jobs store.JobStore, broker message_broaker.MessageBroker, logger *slog.Logger) *JobManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		jobs:          jobs,
		broker:        broker,
		logger:        logger,
		batchSize:     defaultSyncBatchSize,
		flushInterval: defaultSyncFlushInterval,
	}
}

// WithBatching overrides the sync worker's batch size and flush interval.
func (m *JobManager) WithBatching(size int, interval time.Duration) *JobManager {
	if size > 0 {
		m.batchSize = size
	}
	if interval > 0 {
		m.flushInterval = interval
	}
	return m
}

// Enqueue returns the job id when the job was inserted directly, and 0 when it
// was published to the broker.
func (m *JobManager) Enqueue(ctx context.Context, queueName string, payload any, opts types.AddJobOptions) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if m.broker == nil {
		return m.jobs.AddJob(ctx, queueName, raw, opts)
	}

	msg, err := json.Marshal(types.NewJob{QueueName: queueName, Payload: raw, Options: opts})
	if err != nil {
		return 0, err
	}
	if err := m.broker.Publish(ctx, msg); err != nil {
		return 0, fmt.Errorf("failed to publish job for %q: %w", queueName, err)
	}
	return 0, nil
}

// StartQueueAndStorageSyncWorker moves published jobs into the database until ctx
// is done. A batch is acked only after it was inserted; on failure it is requeued.
func (m *JobManager) StartQueueAndStorageSyncWorker(ctx context.Context) error {
	if m.broker == nil {
		return nil
	}

	msgCh, err := m.broker.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}
	m.logger.Info("syncing published jobs with the database", "batch_size", m.batchSize, "flush_interval", m.flushInterval)

	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	var (
		jobsBatch []types.NewJob
		pending   []message_broaker.Message
	)

	flushBatch := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := m.jobs.AddJobs(ctx, jobsBatch); err != nil {
			m.logger.Error("failed to insert batch of jobs", "count", len(jobsBatch), "error", err)
			for _, msg := range pending {
				_ = msg.Nack()
			}
		} else {
			m.logger.Debug("inserted batch of jobs", "count", len(jobsBatch))
			for _, msg := range pending {
				if err := msg.Ack(); err != nil {
					m.logger.Warn("failed to ack message", "error", err)
				}
			}
		}
		jobsBatch = nil
		pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushBatch(context.WithoutCancel(ctx))
			return nil

		case msg, ok := <-msgCh:
			if !ok {
				flushBatch(context.WithoutCancel(ctx))
				return nil
			}

			var job types.NewJob
			if err := json.Unmarshal(msg.Body, &job); err != nil || job.QueueName == "" {
				m.logger.Error("dropping malformed job message", "error", err)
				_ = msg.Ack()
				continue
			}

			jobsBatch = append(jobsBatch, job)
			pending = append(pending, msg)
			if len(jobsBatch) >= m.batchSize {
				flushBatch(ctx)
			}

		case <-ticker.C:
			flushBatch(ctx)
		}
	}
}
