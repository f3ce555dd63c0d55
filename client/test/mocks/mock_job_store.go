package mocks

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/RezaEskandarii/pgqueue/internal/state"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
)

// MockJobStore is a mock implementation of store.JobStore for testing.
type MockJobStore struct {
	AddJobFunc                      func(ctx context.Context, queueName string, payload json.RawMessage, opts types.AddJobOptions) (int64, error)
	AddJobsFunc                     func(ctx context.Context, jobs []types.NewJob) error
	PickNextJobFunc                 func(ctx context.Context, filter store.PickFilter) (*types.Job, error)
	ReleaseJobFunc                  func(ctx context.Context, jobID int64, result types.ReleaseResult) error
	KeepJobAliveFunc                func(ctx context.Context, jobID int64) error
	CheckAndReleaseTimedOutJobsFunc func(ctx context.Context) (int, error)
	ResumeJobFunc                   func(ctx context.Context, jobID int64) error
	FindByIDFunc                    func(ctx context.Context, jobID int64) (*types.Job, error)
	RemoveByIDFunc                  func(ctx context.Context, jobID int64) error
	FetchJobsFunc                   func(ctx context.Context, filter types.JobFilter, page int, pageSize int) (*types.PaginationResult[types.Job], error)
	CountAllJobsGroupedByStatusFunc func(ctx context.Context) (map[state.JobStatus]int, error)
	InTxFunc                        func(ctx context.Context, fn func(store.JobStore) error) error
}

func (m *MockJobStore) AddJob(ctx context.Context, queueName string, payload json.RawMessage, opts types.AddJobOptions) (int64, error) {
	if m.AddJobFunc != nil {
		return m.AddJobFunc(ctx, queueName, payload, opts)
	}
	return 1, nil
}

func (m *MockJobStore) AddJobs(ctx context.Context, jobs []types.NewJob) error {
	if m.AddJobsFunc != nil {
		return m.AddJobsFunc(ctx, jobs)
	}
	return nil
}

func (m *MockJobStore) PickNextJob(ctx context.Context, filter store.PickFilter) (*types.Job, error) {
	if m.PickNextJobFunc != nil {
		return m.PickNextJobFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockJobStore) ReleaseJob(ctx context.Context, jobID int64, result types.ReleaseResult) error {
	if m.ReleaseJobFunc != nil {
		return m.ReleaseJobFunc(ctx, jobID, result)
	}
	return nil
}

func (m *MockJobStore) KeepJobAlive(ctx context.Context, jobID int64) error {
	if m.KeepJobAliveFunc != nil {
		return m.KeepJobAliveFunc(ctx, jobID)
	}
	return nil
}

func (m *MockJobStore) CheckAndReleaseTimedOutJobs(ctx context.Context) (int, error) {
	if m.CheckAndReleaseTimedOutJobsFunc != nil {
		return m.CheckAndReleaseTimedOutJobsFunc(ctx)
	}
	return 0, nil
}

func (m *MockJobStore) ResumeJob(ctx context.Context, jobID int64) error {
	if m.ResumeJobFunc != nil {
		return m.ResumeJobFunc(ctx, jobID)
	}
	return nil
}

func (m *MockJobStore) FindByID(ctx context.Context, jobID int64) (*types.Job, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, jobID)
	}
	return nil, types.ErrJobNotFound
}

func (m *MockJobStore) RemoveByID(ctx context.Context, jobID int64) error {
	if m.RemoveByIDFunc != nil {
		return m.RemoveByIDFunc(ctx, jobID)
	}
	return nil
}

func (m *MockJobStore) FetchJobs(ctx context.Context, filter types.JobFilter, page int, pageSize int) (*types.PaginationResult[types.Job], error) {
	if m.FetchJobsFunc != nil {
		return m.FetchJobsFunc(ctx, filter, page, pageSize)
	}
	return &types.PaginationResult[types.Job]{Items: []types.Job{}}, nil
}

func (m *MockJobStore) CountAllJobsGroupedByStatus(ctx context.Context) (map[state.JobStatus]int, error) {
	if m.CountAllJobsGroupedByStatusFunc != nil {
		return m.CountAllJobsGroupedByStatusFunc(ctx)
	}
	return map[state.JobStatus]int{}, nil
}

func (m *MockJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return m
}

func (m *MockJobStore) InTx(ctx context.Context, fn func(store.JobStore) error) error {
	if m.InTxFunc != nil {
		return m.InTxFunc(ctx, fn)
	}
	return fn(m)
}

var _ store.JobStore = (*MockJobStore)(nil)
