package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RezaEskandarii/pgqueue/internal/state"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = "pgqueue_schema"

var jobRowColumns = []string{
	"job_id", "queue_name", "payload", "status", "start_after", "retries_remaining",
	"created_at", "status_updated_at", "timeout_milliseconds", "timeout_with_result",
}

func newJobStore(t *testing.T) (*PostgresJobStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresJobStore(db, testSchema), mock
}

func TestNewPostgresJobStore(t *testing.T) {
	s, _ := newJobStore(t)
	require.NotNil(t, s)
	assert.Equal(t, `"pgqueue_schema"`, s.schema)
}

func TestPostgresJobStore_AddJob(t *testing.T) {
	s, mock := newJobStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO "pgqueue_schema".job_queue`).
		WithArgs("emails", `{"to":"bob"}`, nil, 10, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(42))

	jobID, err := s.AddJob(ctx, "emails", json.RawMessage(`{"to":"bob"}`), types.AddJobOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), jobID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_AddJob_WithOptions(t *testing.T) {
	s, mock := newJobStore(t)
	ctx := context.Background()

	retries := 2
	startAfter := time.Now().Add(time.Hour)
	timeout := int64(1500)

	mock.ExpectQuery(`INSERT INTO "pgqueue_schema".job_queue`).
		WithArgs("emails", `[1,2]`, startAfter, 2, int64(1500), "paused").
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(7))

	jobID, err := s.AddJob(ctx, "emails", json.RawMessage(`[1,2]`), types.AddJobOptions{
		Retries:             &retries,
		StartAfter:          &startAfter,
		TimeoutMilliseconds: &timeout,
		TimeoutWithResult:   types.ReleasePaused.Ptr(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), jobID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_AddJob_Error(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectQuery("INSERT INTO").WillReturnError(sql.ErrConnDone)

	_, err := s.AddJob(context.Background(), "emails", json.RawMessage(`{}`), types.AddJobOptions{})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "emails")
}

func TestPostgresJobStore_AddJobs(t *testing.T) {
	s, mock := newJobStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "pgqueue_schema".job_queue`).
		WithArgs("a", `{}`, nil, 10, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "pgqueue_schema".job_queue`).
		WithArgs("b", `null`, nil, 10, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(2))
	mock.ExpectCommit()

	err := s.AddJobs(ctx, []types.NewJob{
		{QueueName: "a", Payload: json.RawMessage(`{}`)},
		{QueueName: "b"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_AddJobs_RollsBackOnError(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.AddJobs(context.Background(), []types.NewJob{{QueueName: "a", Payload: json.RawMessage(`{}`)}})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_AddJobs_Empty(t *testing.T) {
	s, _ := newJobStore(t)

	require.NoError(t, s.AddJobs(context.Background(), nil))
}

func TestPostgresJobStore_PickNextJob_Unlimited(t *testing.T) {
	s, mock := newJobStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id, j.queue_name`).
		WithArgs("emails", sqlmock.AnyArg(), "", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "queue_name", "max_concurrency"}).AddRow(5, "emails", -1))
	mock.ExpectQuery(`UPDATE "pgqueue_schema".job_queue SET status = \$1`).
		WithArgs(state.StatusProcessing, int64(5)).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow(5, "emails", []byte(`{"to":"bob"}`), "processing", now, 10, now, now, nil, nil))
	mock.ExpectCommit()

	job, err := s.PickNextJob(ctx, store.PickFilter{QueueName: "emails"})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(5), job.JobID)
	assert.Equal(t, state.StatusProcessing, job.Status)
	assert.JSONEq(t, `{"to":"bob"}`, string(job.Payload))
	assert.Nil(t, job.TimeoutMilliseconds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_PickNextJob_Empty(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id, j.queue_name`).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "queue_name", "max_concurrency"}))
	mock.ExpectCommit()

	job, err := s.PickNextJob(context.Background(), store.PickFilter{})
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_PickNextJob_FiniteConcurrency(t *testing.T) {
	s, mock := newJobStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id, j.queue_name`).
		WithArgs("", sqlmock.AnyArg(), "flow-1", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "queue_name", "max_concurrency"}).AddRow(9, "reports", 2))
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("reports").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "pgqueue_schema".job_queue`).
		WithArgs("reports", state.StatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`UPDATE "pgqueue_schema".job_queue`).
		WithArgs(state.StatusProcessing, int64(9)).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow(9, "reports", []byte(`{}`), "processing", now, 3, now, now, int64(2000), "paused"))
	mock.ExpectCommit()

	job, err := s.PickNextJob(ctx, store.PickFilter{MultiStepID: "flow-1"})
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NotNil(t, job.TimeoutMilliseconds)
	assert.Equal(t, int64(2000), *job.TimeoutMilliseconds)
	require.NotNil(t, job.TimeoutWithResult)
	assert.Equal(t, types.ReleasePaused, *job.TimeoutWithResult)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_PickNextJob_Saturated(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id, j.queue_name`).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "queue_name", "max_concurrency"}).AddRow(9, "reports", 1))
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("reports").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("reports", state.StatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	job, err := s.PickNextJob(context.Background(), store.PickFilter{QueueName: "reports"})
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_PickNextJob_SkipsSaturatedQueue(t *testing.T) {
	s, mock := newJobStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id, j.queue_name`).
		WithArgs("", sqlmock.AnyArg(), "", false, pq.StringArray{}).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "queue_name", "max_concurrency"}).AddRow(9, "reports", 1))
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("reports").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("reports", state.StatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT j.job_id, j.queue_name`).
		WithArgs("", sqlmock.AnyArg(), "", false, pq.StringArray{"reports"}).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "queue_name", "max_concurrency"}).AddRow(10, "emails", -1))
	mock.ExpectQuery(`UPDATE "pgqueue_schema".job_queue`).
		WithArgs(state.StatusProcessing, int64(10)).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow(10, "emails", []byte(`{}`), "processing", now, 3, now, now, nil, nil))
	mock.ExpectCommit()

	job, err := s.PickNextJob(context.Background(), store.PickFilter{AllowedQueueNames: []string{"reports", "emails"}})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(10), job.JobID)
	assert.Equal(t, "emails", job.QueueName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_PickNextJob_IgnoreMaxConcurrency(t *testing.T) {
	s, mock := newJobStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id, j.queue_name`).
		WithArgs("reports", sqlmock.AnyArg(), "", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "queue_name", "max_concurrency"}).AddRow(9, "reports", 1))
	mock.ExpectQuery(`UPDATE "pgqueue_schema".job_queue`).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow(9, "reports", []byte(`{}`), "processing", now, 3, now, now, nil, nil))
	mock.ExpectCommit()

	job, err := s.PickNextJob(context.Background(), store.PickFilter{QueueName: "reports", IgnoreMaxConcurrency: true})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_PickNextJob_ErrorRollsBack(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id`).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	job, err := s.PickNextJob(context.Background(), store.PickFilter{})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_PickNextJob_WithTxDoesNotBegin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id`).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "queue_name", "max_concurrency"}))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	s := NewPostgresJobStore(db, testSchema).WithTx(tx)
	job, err := s.PickNextJob(context.Background(), store.PickFilter{})
	require.NoError(t, err)
	assert.Nil(t, job)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_ReleaseJob_Complete(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectExec(`DELETE FROM "pgqueue_schema".job_queue WHERE job_id = \$1 AND status = ANY`).
		WithArgs(int64(3), pq.StringArray{"processing"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.ReleaseJob(context.Background(), 3, types.ReleaseComplete)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_ReleaseJob_Failed(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectExec(`UPDATE "pgqueue_schema".job_queue j SET retries_remaining`).
		WithArgs(int64(3), state.StatusPending, state.StatusFailed, pq.StringArray{"processing"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.ReleaseJob(context.Background(), 3, types.ReleaseFailed)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_ReleaseJob_Paused(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectExec(`UPDATE "pgqueue_schema".job_queue SET status = \$2`).
		WithArgs(int64(3), state.StatusPaused, pq.StringArray{"processing"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.ReleaseJob(context.Background(), 3, types.ReleasePaused)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_ReleaseJob_NotFound(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectExec("DELETE FROM").
		WithArgs(int64(999), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.ReleaseJob(context.Background(), 999, types.ReleaseComplete)
	assert.ErrorIs(t, err, types.ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_ReleaseJob_PendingJobIsNotReleased(t *testing.T) {
	s, mock := newJobStore(t)

	// A pending row does not match the processing-only guard.
	mock.ExpectExec(`DELETE FROM "pgqueue_schema".job_queue WHERE job_id = \$1 AND status = ANY`).
		WithArgs(int64(4), pq.StringArray{"processing"}).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.ReleaseJob(context.Background(), 4, types.ReleaseComplete)
	assert.ErrorIs(t, err, types.ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_ReleaseJob_InvalidResult(t *testing.T) {
	s, mock := newJobStore(t)

	err := s.ReleaseJob(context.Background(), 1, types.ReleaseResult("done"))
	assert.ErrorIs(t, err, types.ErrInvalidReleaseResult)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_KeepJobAlive(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectExec(`UPDATE "pgqueue_schema".job_queue SET status_updated_at = NOW\(\)`).
		WithArgs(int64(4), state.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "pgqueue_schema".job_queue SET status_updated_at = NOW\(\)`).
		WithArgs(int64(5), state.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.KeepJobAlive(context.Background(), 4))
	assert.ErrorIs(t, s.KeepJobAlive(context.Background(), 5), types.ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_CheckAndReleaseTimedOutJobs(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id, COALESCE\(j.timeout_with_result, c.timeout_with_result, \$2\)`).
		WithArgs(state.StatusProcessing, "failed", int64(300000)).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "result"}).
			AddRow(1, "failed").
			AddRow(2, "complete").
			AddRow(3, "paused"))
	mock.ExpectExec(`UPDATE "pgqueue_schema".job_queue j SET retries_remaining`).
		WithArgs(int64(1), state.StatusPending, state.StatusFailed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "pgqueue_schema".job_queue`).
		WithArgs(int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "pgqueue_schema".job_queue SET status = \$2`).
		WithArgs(int64(3), state.StatusPaused, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := s.CheckAndReleaseTimedOutJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_CheckAndReleaseTimedOutJobs_None(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT j.job_id`).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "result"}))
	mock.ExpectCommit()

	n, err := s.CheckAndReleaseTimedOutJobs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_ResumeJob(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectExec(`UPDATE "pgqueue_schema".job_queue SET status = \$2`).
		WithArgs(int64(8), state.StatusPending, state.StatusPaused).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.ResumeJob(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_FindByID(t *testing.T) {
	s, mock := newJobStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT job_id, queue_name, payload`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow(11, "emails", []byte(`{}`), "failed", now, 0, now, now, nil, nil))
	mock.ExpectQuery(`SELECT job_id, queue_name, payload`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows(jobRowColumns))

	job, err := s.FindByID(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, job.Status)
	assert.Zero(t, job.RetriesRemaining)

	_, err = s.FindByID(context.Background(), 12)
	assert.ErrorIs(t, err, types.ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_RemoveByID(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectExec(`DELETE FROM "pgqueue_schema".job_queue`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.RemoveByID(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_FetchJobs(t *testing.T) {
	s, mock := newJobStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "pgqueue_schema".job_queue WHERE TRUE AND queue_name = \$1 AND status IN \(\$2, \$3\)`).
		WithArgs("emails", state.StatusFailed, state.StatusPaused).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT job_id, queue_name`).
		WithArgs("emails", state.StatusFailed, state.StatusPaused, 2, 0).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow(1, "emails", []byte(`{}`), "failed", now, 0, now, now, nil, nil).
			AddRow(2, "emails", []byte(`{}`), "paused", now, 4, now, now, nil, nil))

	result, err := s.FetchJobs(context.Background(), types.JobFilter{
		QueueName: "emails",
		Statuses:  []state.JobStatus{state.StatusFailed, state.StatusPaused},
	}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 3, result.TotalItems)
	assert.Equal(t, 2, result.TotalPages)
	assert.True(t, result.HasNextPage)
	assert.False(t, result.HasPreviousPage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_CountAllJobsGroupedByStatus(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM "pgqueue_schema".job_queue GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("", 4).
			AddRow("processing", 2))

	counts, err := s.CountAllJobsGroupedByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, counts[state.StatusPending])
	assert.Equal(t, 2, counts[state.StatusProcessing])
	assert.Equal(t, 0, counts[state.StatusFailed])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobStore_InTx(t *testing.T) {
	s, mock := newJobStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM").
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO").
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}).AddRow(2))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(js store.JobStore) error {
		if err := js.ReleaseJob(context.Background(), 1, types.ReleaseComplete); err != nil {
			return err
		}
		_, err := js.AddJob(context.Background(), "next", json.RawMessage(`{}`), types.AddJobOptions{})
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
