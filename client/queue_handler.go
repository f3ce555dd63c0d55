package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/RezaEskandarii/pgqueue/types/config"
)

// QueueHandler processes every job of a plain queue with one function.
type QueueHandler struct {
	jobs      store.JobStore
	queueName string
	handle    config.HandlerFunc
	opts      processorOptions
}

func NewQueueHandler(jobStore store.JobStore, queueName string, handle config.HandlerFunc, opts ...ProcessorOption) *QueueHandler {
	return &QueueHandler{
		jobs:      jobStore,
		queueName: queueName,
		handle:    handle,
		opts:      newProcessorOptions(opts),
	}
}

// NewQueueHandlers builds one QueueHandler per queue registered in jh.
func NewQueueHandlers(jobStore store.JobStore, jh *config.JobHandler, opts ...ProcessorOption) []*QueueHandler {
	names := jh.List()
	handlers := make([]*QueueHandler, 0, len(names))
	for _, name := range names {
		handlers = append(handlers, NewQueueHandler(jobStore, name, jh.Execute, opts...))
	}
	return handlers
}

func (h *QueueHandler) QueueName() string {
	return h.queueName
}

func (h *QueueHandler) OwnsJob(job *types.Job) *ProcessJobError {
	if job == nil || job.JobID == 0 {
		return &ProcessJobError{Type: ErrTypeBadJobFormat, Message: "missing job id"}
	}
	if job.QueueName != h.queueName {
		return &ProcessJobError{Type: ErrTypeJobNotOwned, Message: fmt.Sprintf("job belongs to queue %q", job.QueueName)}
	}
	return nil
}

func (h *QueueHandler) ProcessJob(ctx context.Context, job *types.Job) (ProcessJobResponse, error) {
	if perr := h.OwnsJob(job); perr != nil {
		return ProcessJobResponse{Status: StatusError, HadJob: true, Error: perr}, nil
	}

	result, err := runHandler(func() (types.ReleaseResult, error) {
		return h.handle(ctx, job)
	})
	if err == nil {
		if result == "" {
			result = types.ReleaseComplete
		}
		err = result.Validate()
	}

	if err != nil {
		if relErr := h.jobs.ReleaseJob(ctx, job.JobID, types.ReleaseFailed); relErr != nil {
			return ProcessJobResponse{}, errors.Join(relErr, err)
		}
		h.opts.errLogger.Error(err.Error(), ErrTypeHandlerError, job)
		return errorResponse(ErrTypeHandlerError, h.queueName, err.Error()), nil
	}

	if err := h.jobs.ReleaseJob(ctx, job.JobID, result); err != nil {
		return ProcessJobResponse{}, err
	}
	return okResponse(), nil
}

func (h *QueueHandler) ProcessNextJob(ctx context.Context, ignoreMaxConcurrency bool) (ProcessJobResponse, error) {
	job, err := h.jobs.PickNextJob(ctx, store.PickFilter{
		QueueName:            h.queueName,
		IgnoreMaxConcurrency: ignoreMaxConcurrency,
	})
	if err != nil {
		return ProcessJobResponse{}, err
	}
	if job == nil {
		return emptyResponse(), nil
	}
	return h.ProcessJob(ctx, job)
}

var _ Processor = (*QueueHandler)(nil)
