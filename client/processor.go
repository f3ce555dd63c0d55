package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/RezaEskandarii/pgqueue/types"
)

// Processor claims and runs jobs of one logical consumer. Worker drives
// ProcessNextJob; the receiver hands pushed jobs to ProcessJob of the owner.
type Processor interface {
	// OwnsJob returns nil when the job is routed to this processor.
	OwnsJob(job *types.Job) *ProcessJobError
	// ProcessJob runs a job that is already claimed. The error is reserved for
	// store failures; everything else is reported in the response.
	ProcessJob(ctx context.Context, job *types.Job) (ProcessJobResponse, error)
	ProcessNextJob(ctx context.Context, ignoreMaxConcurrency bool) (ProcessJobResponse, error)
}

type processorOptions struct {
	multiStepID   string
	errLogger     ErrorLogger
	logger        *slog.Logger
	validator     func(payload json.RawMessage) error
	preventFanOut bool
}

type ProcessorOption func(*processorOptions)

// WithMultiStepID sets the id a multi-step queue stamps on and expects in its
// payloads. Defaults to the queue name.
func WithMultiStepID(id string) ProcessorOption {
	return func(o *processorOptions) {
		o.multiStepID = id
	}
}

func WithErrorLogger(l ErrorLogger) ProcessorOption {
	return func(o *processorOptions) {
		o.errLogger = l
	}
}

func WithLogger(l *slog.Logger) ProcessorOption {
	return func(o *processorOptions) {
		o.logger = l
	}
}

// WithPayloadValidator checks payloads passed to MultiStepQueue.AddJob.
func WithPayloadValidator(v func(payload json.RawMessage) error) ProcessorOption {
	return func(o *processorOptions) {
		o.validator = v
	}
}

// WithPreventFanOut stops a multi-step queue from enqueuing the next step. Meant for dry runs.
func WithPreventFanOut() ProcessorOption {
	return func(o *processorOptions) {
		o.preventFanOut = true
	}
}

func newProcessorOptions(opts []ProcessorOption) processorOptions {
	o := processorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.errLogger == nil {
		o.errLogger = NewSlogErrorLogger(o.logger)
	}
	return o
}

// decodeJob parses a raw job record as received over HTTP.
func decodeJob(raw []byte) (*types.Job, *ProcessJobError) {
	var job types.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, &ProcessJobError{Type: ErrTypeBadJobFormat, Message: err.Error()}
	}
	if job.JobID == 0 || job.QueueName == "" {
		return nil, &ProcessJobError{Type: ErrTypeBadJobFormat, Message: "job_id and queue_name are required"}
	}
	return &job, nil
}

// runHandler turns a panic into an error.
func runHandler(fn func() (types.ReleaseResult, error)) (result types.ReleaseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
