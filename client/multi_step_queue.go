package client

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
)

// Reserved payload fields of multi-step jobs.
const (
	MultiStepIDField = "multi_step_id"
	StepIDField      = "step_id"
)

// MultiStepPayload is the payload handed to a step handler.
type MultiStepPayload struct {
	MultiStepID string
	StepID      string
	// Raw is the full JSON object, reserved fields included.
	Raw json.RawMessage
}

// Decode unmarshals the payload into v.
func (p MultiStepPayload) Decode(v any) error {
	return json.Unmarshal(p.Raw, v)
}

// StepHandler runs one step. An empty result means complete.
type StepHandler func(ctx context.Context, payload MultiStepPayload, jobID int64) (types.ReleaseResult, error)

type Step struct {
	ID      string
	Handler StepHandler
	// CustomTimeoutMilliseconds overrides the queue lease for jobs of this step.
	CustomTimeoutMilliseconds *int64
}

type stepState struct {
	step Step
	next *Step
}

// MultiStepQueue chains jobs of one queue into an ordered pipeline. The current
// step lives in the job payload, so no workflow state is kept in memory between jobs.
type MultiStepQueue struct {
	jobs      store.JobStore
	queueName string
	first     string
	states    map[string]stepState
	opts      processorOptions
}

func NewMultiStepQueue(jobStore store.JobStore, queueName string, steps []Step, opts ...ProcessorOption) (*MultiStepQueue, error) {
	if len(steps) == 0 {
		return nil, types.ErrNoSteps
	}

	states := make(map[string]stepState, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			return nil, fmt.Errorf("step %d of %q has no id", i, queueName)
		}
		if step.Handler == nil {
			return nil, fmt.Errorf("step %q of %q has no handler", step.ID, queueName)
		}
		if _, exists := states[step.ID]; exists {
			return nil, fmt.Errorf("%w: %q", types.ErrDuplicateStep, step.ID)
		}
		st := stepState{step: step}
		if i+1 < len(steps) {
			next := steps[i+1]
			st.next = &next
		}
		states[step.ID] = st
	}

	o := newProcessorOptions(opts)
	if o.multiStepID == "" {
		o.multiStepID = queueName
	}

	return &MultiStepQueue{
		jobs:      jobStore,
		queueName: queueName,
		first:     steps[0].ID,
		states:    states,
		opts:      o,
	}, nil
}

func (m *MultiStepQueue) ID() string {
	return m.opts.multiStepID
}

func (m *MultiStepQueue) QueueName() string {
	return m.queueName
}

// WithTx returns a copy whose store calls run inside tx.
func (m *MultiStepQueue) WithTx(tx *sql.Tx) *MultiStepQueue {
	cp := *m
	cp.jobs = m.jobs.WithTx(tx)
	return &cp
}

// AddJob starts a new pipeline run at the first step. The payload must marshal to
// a JSON object.
func (m *MultiStepQueue) AddJob(ctx context.Context, payload any, opts types.AddJobOptions) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	fields, err := payloadFields(raw)
	if err != nil {
		return 0, err
	}
	if m.opts.validator != nil {
		if err := m.opts.validator(raw); err != nil {
			return 0, fmt.Errorf("%w: %v", types.ErrInvalidPayload, err)
		}
	}

	first := m.states[m.first].step
	if opts.TimeoutMilliseconds == nil {
		opts.TimeoutMilliseconds = first.CustomTimeoutMilliseconds
	}

	body, err := m.stamp(fields, first.ID)
	if err != nil {
		return 0, err
	}
	return m.jobs.AddJob(ctx, m.queueName, body, opts)
}

// OwnsJob checks the job shape and that it carries this queue's multi-step id.
func (m *MultiStepQueue) OwnsJob(job *types.Job) *ProcessJobError {
	if job == nil || job.JobID == 0 {
		return &ProcessJobError{Type: ErrTypeBadJobFormat, Message: "missing job id"}
	}
	fields, err := payloadFields(job.Payload)
	if err != nil {
		return &ProcessJobError{Type: ErrTypeBadJobFormat, Message: err.Error()}
	}
	if job.QueueName != m.queueName {
		return &ProcessJobError{Type: ErrTypeJobNotOwned, Message: fmt.Sprintf("job belongs to queue %q", job.QueueName)}
	}
	id, _, perr := reservedFields(fields)
	if perr != nil {
		return perr
	}
	if id != m.opts.multiStepID {
		return &ProcessJobError{Type: ErrTypeJobNotOwned, Message: fmt.Sprintf("job belongs to multi-step %q", id)}
	}
	return nil
}

// OwnsRawJob is OwnsJob for a JSON job record.
func (m *MultiStepQueue) OwnsRawJob(raw []byte) *ProcessJobError {
	job, perr := decodeJob(raw)
	if perr != nil {
		return perr
	}
	return m.OwnsJob(job)
}

// ProcessRawJob decodes a JSON job record and processes it.
func (m *MultiStepQueue) ProcessRawJob(ctx context.Context, raw []byte) (ProcessJobResponse, error) {
	job, perr := decodeJob(raw)
	if perr != nil {
		return ProcessJobResponse{Status: StatusError, HadJob: true, Error: perr}, nil
	}
	return m.ProcessJob(ctx, job)
}

// ProcessJobWithTx processes the job with release and fan-out in the caller's transaction.
func (m *MultiStepQueue) ProcessJobWithTx(ctx context.Context, tx *sql.Tx, job *types.Job) (ProcessJobResponse, error) {
	return m.WithTx(tx).ProcessJob(ctx, job)
}

// ProcessJob runs the current step of a claimed job, releases it and, when the
// step completed, enqueues the next step in the same transaction.
func (m *MultiStepQueue) ProcessJob(ctx context.Context, job *types.Job) (ProcessJobResponse, error) {
	if perr := m.OwnsJob(job); perr != nil {
		return ProcessJobResponse{Status: StatusError, HadJob: true, Error: perr}, nil
	}

	fields, _ := payloadFields(job.Payload)
	_, step, _ := reservedFields(fields)
	stepID := m.first
	if step != nil {
		stepID = *step
	}

	st, ok := m.states[stepID]
	if !ok {
		// No handler can run it; park the job until the step exists again.
		if err := m.jobs.ReleaseJob(ctx, job.JobID, types.ReleasePaused); err != nil {
			return ProcessJobResponse{}, err
		}
		msg := fmt.Sprintf("%v: %q", types.ErrUnknownStep, stepID)
		m.opts.errLogger.Error(msg, ErrTypeUnknownStep, job)
		return errorResponse(ErrTypeUnknownStep, stepID, msg), nil
	}

	payload := MultiStepPayload{
		MultiStepID: m.opts.multiStepID,
		StepID:      stepID,
		Raw:         job.Payload,
	}
	result, err := runHandler(func() (types.ReleaseResult, error) {
		return st.step.Handler(ctx, payload, job.JobID)
	})
	if err == nil {
		if result == "" {
			result = types.ReleaseComplete
		}
		err = result.Validate()
	}

	if err != nil {
		if relErr := m.jobs.ReleaseJob(ctx, job.JobID, types.ReleaseFailed); relErr != nil {
			return ProcessJobResponse{}, errors.Join(relErr, err)
		}
		m.opts.errLogger.Error(err.Error(), ErrTypeMultiStepError, job)
		return errorResponse(ErrTypeMultiStepError, stepID, err.Error()), nil
	}

	err = m.jobs.InTx(ctx, func(js store.JobStore) error {
		if err := js.ReleaseJob(ctx, job.JobID, result); err != nil {
			return err
		}
		if result != types.ReleaseComplete || st.next == nil || m.opts.preventFanOut {
			return nil
		}

		body, err := m.stamp(fields, st.next.ID)
		if err != nil {
			return err
		}
		nextID, err := js.AddJob(ctx, m.queueName, body, types.AddJobOptions{
			TimeoutMilliseconds: st.next.CustomTimeoutMilliseconds,
		})
		if err != nil {
			return err
		}
		m.opts.logger.Debug("enqueued next step",
			"queue", m.queueName, "job_id", job.JobID, "next_job_id", nextID, "step", st.next.ID)
		return nil
	})
	if err != nil {
		return ProcessJobResponse{}, err
	}

	return okResponse(), nil
}

// ProcessNextJob claims a job of this multi-step queue and processes it.
// HadJob is false when nothing was claimable.
func (m *MultiStepQueue) ProcessNextJob(ctx context.Context, ignoreMaxConcurrency bool) (ProcessJobResponse, error) {
	job, err := m.jobs.PickNextJob(ctx, store.PickFilter{
		QueueName:            m.queueName,
		MultiStepID:          m.opts.multiStepID,
		IgnoreMaxConcurrency: ignoreMaxConcurrency,
	})
	if err != nil {
		return ProcessJobResponse{}, err
	}
	if job == nil {
		return emptyResponse(), nil
	}
	return m.ProcessJob(ctx, job)
}

func (m *MultiStepQueue) KeepJobAlive(ctx context.Context, jobID int64) error {
	return m.jobs.KeepJobAlive(ctx, jobID)
}

// stamp writes the reserved fields into a copy of fields and encodes it.
func (m *MultiStepQueue) stamp(fields map[string]json.RawMessage, stepID string) (json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}

	id, err := json.Marshal(m.opts.multiStepID)
	if err != nil {
		return nil, err
	}
	step, err := json.Marshal(stepID)
	if err != nil {
		return nil, err
	}
	out[MultiStepIDField] = id
	out[StepIDField] = step

	return json.Marshal(out)
}

// reservedFields reads multi_step_id, which must be a string, and step_id, which
// must be a string when present. A nil step means the pipeline has not started.
func reservedFields(fields map[string]json.RawMessage) (string, *string, *ProcessJobError) {
	raw, ok := fields[MultiStepIDField]
	if !ok {
		return "", nil, &ProcessJobError{Type: ErrTypeBadJobFormat, Message: "multi_step_id is required"}
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || !isJSONString(raw) {
		return "", nil, &ProcessJobError{Type: ErrTypeBadJobFormat, Message: "multi_step_id must be a string"}
	}

	raw, ok = fields[StepIDField]
	if !ok {
		return id, nil, nil
	}
	var step string
	if err := json.Unmarshal(raw, &step); err != nil || !isJSONString(raw) {
		return "", nil, &ProcessJobError{Type: ErrTypeBadJobFormat, Message: "step_id must be a string"}
	}
	return id, &step, nil
}

// isJSONString rejects null, which json.Unmarshal accepts for a string target.
func isJSONString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func payloadFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, types.ErrPayloadNotObject
	}
	return fields, nil
}

var _ Processor = (*MultiStepQueue)(nil)
