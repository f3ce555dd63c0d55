package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/RezaEskandarii/pgqueue/internal/constants"
	"github.com/RezaEskandarii/pgqueue/internal/state"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/lib/pq"
)

const jobColumns = `job_id, queue_name, payload, status, start_after, retries_remaining,
		created_at, status_updated_at, timeout_milliseconds, timeout_with_result`

type PostgresJobStore struct {
	db     *sql.DB
	tx     *sql.Tx
	schema string
}

func NewPostgresJobStore(db *sql.DB, schema string) *PostgresJobStore {
	return &PostgresJobStore{
		db:     db,
		schema: pq.QuoteIdentifier(schema),
	}
}

func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     s.db,
		tx:     tx,
		schema: s.schema,
	}
}

func (s *PostgresJobStore) InTx(ctx context.Context, fn func(store.JobStore) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(s.WithTx(tx))
	})
}

func (s *PostgresJobStore) conn() store.DBTX {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// inTx runs fn in the bound transaction, or in a new one that commits when fn succeeds.
func (s *PostgresJobStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *PostgresJobStore) AddJob(ctx context.Context, queueName string, payload json.RawMessage, opts types.AddJobOptions) (int64, error) {
	return s.insert(ctx, s.conn(), queueName, payload, opts)
}

func (s *PostgresJobStore) AddJobs(ctx context.Context, jobs []types.NewJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, job := range jobs {
			if _, err := s.insert(ctx, tx, job.QueueName, job.Payload, job.Options); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresJobStore) insert(ctx context.Context, q store.DBTX, queueName string, payload json.RawMessage, opts types.AddJobOptions) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s.job_queue (
			queue_name,
			payload,
			start_after,
			retries_remaining,
			timeout_milliseconds,
			timeout_with_result
		)
		VALUES ($1, $2, COALESCE($3, NOW()), $4, $5, $6)
		RETURNING job_id`, s.schema)

	retries := constants.DefaultRetries
	if opts.Retries != nil {
		retries = *opts.Retries
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	var timeoutResult any
	if opts.TimeoutWithResult != nil {
		timeoutResult = string(*opts.TimeoutWithResult)
	}
	var timeoutMs any
	if opts.TimeoutMilliseconds != nil {
		timeoutMs = *opts.TimeoutMilliseconds
	}
	var startAfter any
	if opts.StartAfter != nil {
		startAfter = *opts.StartAfter
	}

	var jobID int64
	err := q.QueryRowContext(ctx, query,
		queueName,
		string(payload),
		startAfter,
		retries,
		timeoutMs,
		timeoutResult,
	).Scan(&jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job into queue %q: %w", queueName, err)
	}

	return jobID, nil
}

// PickNextJob claims one job in a single transaction. Candidate rows are locked
// with SKIP LOCKED so concurrent callers never see the same row. For queues with a
// finite max_concurrency the per-queue transaction advisory lock serializes the
// final count so the ceiling holds across processes. A queue found saturated by
// that recount is skipped and the next eligible queue is tried.
func (s *PostgresJobStore) PickNextJob(ctx context.Context, filter store.PickFilter) (*types.Job, error) {
	var picked *types.Job

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		selectQuery := fmt.Sprintf(`
			SELECT j.job_id, j.queue_name, COALESCE(c.max_concurrency, %[2]d)
			FROM %[1]s.job_queue j
			LEFT JOIN %[1]s.queue_config c ON c.queue_name = j.queue_name
			WHERE j.status = ''
			  AND j.start_after <= NOW()
			  AND ($1 = '' OR j.queue_name = $1)
			  AND (COALESCE(cardinality($2::text[]), 0) = 0 OR j.queue_name = ANY($2::text[]))
			  AND ($3 = '' OR j.payload->>'multi_step_id' = $3)
			  AND ($4::boolean
			       OR COALESCE(c.max_concurrency, %[2]d) < 0
			       OR c.max_concurrency > (
			           SELECT COUNT(*) FROM %[1]s.job_queue p
			           WHERE p.queue_name = j.queue_name AND p.status = 'processing'))
			  AND j.queue_name <> ALL($5::text[])
			ORDER BY j.start_after, j.created_at, j.job_id
			LIMIT 1
			FOR UPDATE OF j SKIP LOCKED`, s.schema, constants.DefaultMaxConcurrency)

		saturatedQueues := pq.StringArray{}
		for {
			var (
				jobID          int64
				queueName      string
				maxConcurrency int
			)
			err := tx.QueryRowContext(ctx, selectQuery,
				filter.QueueName,
				pq.Array(filter.AllowedQueueNames),
				filter.MultiStepID,
				filter.IgnoreMaxConcurrency,
				saturatedQueues,
			).Scan(&jobID, &queueName, &maxConcurrency)
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to select next job: %w", err)
			}

			if maxConcurrency >= 0 && !filter.IgnoreMaxConcurrency {
				saturated, err := s.queueSaturated(ctx, tx, queueName, maxConcurrency)
				if err != nil {
					return err
				}
				if saturated {
					if filter.QueueName != "" {
						return nil
					}
					saturatedQueues = append(saturatedQueues, queueName)
					continue
				}
			}

			updateQuery := fmt.Sprintf(`
				UPDATE %s.job_queue
				SET status = $1, status_updated_at = NOW()
				WHERE job_id = $2
				RETURNING %s`, s.schema, jobColumns)

			job, err := scanJob(tx.QueryRowContext(ctx, updateQuery, state.StatusProcessing, jobID))
			if err != nil {
				return fmt.Errorf("failed to claim job %d: %w", jobID, err)
			}
			picked = job
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	return picked, nil
}

func (s *PostgresJobStore) queueSaturated(ctx context.Context, tx *sql.Tx, queueName string, maxConcurrency int) (bool, error) {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", queueName); err != nil {
		return false, fmt.Errorf("failed to lock queue %q: %w", queueName, err)
	}

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s.job_queue
		WHERE queue_name = $1 AND status = $2`, s.schema)

	var processing int
	if err := tx.QueryRowContext(ctx, countQuery, queueName, state.StatusProcessing).Scan(&processing); err != nil {
		return false, fmt.Errorf("failed to count processing jobs of %q: %w", queueName, err)
	}

	return processing >= maxConcurrency, nil
}

func (s *PostgresJobStore) ReleaseJob(ctx context.Context, jobID int64, result types.ReleaseResult) error {
	if err := result.Validate(); err != nil {
		return err
	}
	return s.release(ctx, s.conn(), jobID, result)
}

func (s *PostgresJobStore) release(ctx context.Context, q store.DBTX, jobID int64, result types.ReleaseResult) error {
	var (
		query string
		args  []any
	)

	// Only rows in a status that may move to the released status are touched.
	from := pq.StringArray(state.StatusNames(state.SourcesOf(state.JobStatus(result))))

	switch result {
	case types.ReleaseComplete:
		query = fmt.Sprintf(`DELETE FROM %s.job_queue WHERE job_id = $1 AND status = ANY($2::text[])`, s.schema)
		args = []any{jobID, from}

	case types.ReleaseFailed:
		// A failure with retries left goes back to pending after the queue's pause.
		// With none left the row stays as a terminal failed record.
		query = fmt.Sprintf(`
			UPDATE %[1]s.job_queue j
			SET retries_remaining = GREATEST(j.retries_remaining - 1, 0),
			    status = CASE WHEN j.retries_remaining > 0 THEN $2 ELSE $3 END,
			    start_after = CASE WHEN j.retries_remaining > 0
			        THEN NOW() + COALESCE((
			            SELECT c.pause_between_retries_milliseconds
			            FROM %[1]s.queue_config c
			            WHERE c.queue_name = j.queue_name), 0) * INTERVAL '1 millisecond'
			        ELSE j.start_after END,
			    status_updated_at = NOW()
			WHERE j.job_id = $1 AND j.status = ANY($4::text[])`, s.schema)
		args = []any{jobID, state.StatusPending, state.StatusFailed, from}

	case types.ReleasePaused:
		query = fmt.Sprintf(`
			UPDATE %s.job_queue
			SET status = $2, status_updated_at = NOW()
			WHERE job_id = $1 AND status = ANY($3::text[])`, s.schema)
		args = []any{jobID, state.StatusPaused, from}

	default:
		return result.Validate()
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to release job %d as %s: %w", jobID, result, err)
	}
	return requireRow(res, jobID)
}

func (s *PostgresJobStore) KeepJobAlive(ctx context.Context, jobID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s.job_queue
		SET status_updated_at = NOW()
		WHERE job_id = $1 AND status = $2`, s.schema)

	res, err := s.conn().ExecContext(ctx, query, jobID, state.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to keep job %d alive: %w", jobID, err)
	}
	return requireRow(res, jobID)
}

// CheckAndReleaseTimedOutJobs applies the timeout result to every processing job
// whose lease expired. The job's own timeout wins over the queue's, which wins over
// the default.
func (s *PostgresJobStore) CheckAndReleaseTimedOutJobs(ctx context.Context) (int, error) {
	released := 0

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
			SELECT j.job_id, COALESCE(j.timeout_with_result, c.timeout_with_result, $2)
			FROM %[1]s.job_queue j
			LEFT JOIN %[1]s.queue_config c ON c.queue_name = j.queue_name
			WHERE j.status = $1
			  AND j.status_updated_at
			      + COALESCE(j.timeout_milliseconds, c.timeout_milliseconds, $3) * INTERVAL '1 millisecond' < NOW()
			ORDER BY j.job_id
			FOR UPDATE OF j SKIP LOCKED`, s.schema)

		rows, err := tx.QueryContext(ctx, query,
			state.StatusProcessing,
			constants.DefaultTimeoutResult,
			constants.DefaultTimeout.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to select timed out jobs: %w", err)
		}

		type expired struct {
			jobID  int64
			result types.ReleaseResult
		}
		var jobs []expired
		for rows.Next() {
			var e expired
			var result string
			if err := rows.Scan(&e.jobID, &result); err != nil {
				rows.Close()
				return err
			}
			e.result = types.ReleaseResult(result)
			jobs = append(jobs, e)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, e := range jobs {
			if e.result.Validate() != nil {
				e.result = types.ReleaseFailed
			}
			if err := s.release(ctx, tx, e.jobID, e.result); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return released, nil
}

func (s *PostgresJobStore) ResumeJob(ctx context.Context, jobID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s.job_queue
		SET status = $2, status_updated_at = NOW()
		WHERE job_id = $1 AND status = $3`, s.schema)

	res, err := s.conn().ExecContext(ctx, query, jobID, state.StatusPending, state.StatusPaused)
	if err != nil {
		return fmt.Errorf("failed to resume job %d: %w", jobID, err)
	}
	return requireRow(res, jobID)
}

func (s *PostgresJobStore) FindByID(ctx context.Context, jobID int64) (*types.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s.job_queue WHERE job_id = $1`, jobColumns, s.schema)

	job, err := scanJob(s.conn().QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", jobID, types.ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *PostgresJobStore) RemoveByID(ctx context.Context, jobID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s.job_queue WHERE job_id = $1`, s.schema)

	res, err := s.conn().ExecContext(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", jobID, err)
	}
	return requireRow(res, jobID)
}

func (s *PostgresJobStore) FetchJobs(ctx context.Context, filter types.JobFilter, page int, pageSize int) (*types.PaginationResult[types.Job], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where := "TRUE"
	var args []any
	argIndex := 1

	if filter.QueueName != "" {
		where += fmt.Sprintf(" AND queue_name = $%d", argIndex)
		args = append(args, filter.QueueName)
		argIndex++
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
			args = append(args, st)
			argIndex++
		}
		where += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s.job_queue WHERE %s`, s.schema, where)
	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM %s.job_queue
		WHERE %s
		ORDER BY start_after, created_at, job_id
		LIMIT $%d OFFSET $%d`, jobColumns, s.schema, where, argIndex, argIndex+1)

	var totalItems int
	if err := s.conn().QueryRowContext(ctx, countQuery, args...).Scan(&totalItems); err != nil {
		return nil, err
	}

	rows, err := s.conn().QueryContext(ctx, selectQuery, append(args, pageSize, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]types.Job, 0, pageSize)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	return &types.PaginationResult[types.Job]{
		Items:           jobs,
		TotalItems:      totalItems,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func (s *PostgresJobStore) CountAllJobsGroupedByStatus(ctx context.Context) (map[state.JobStatus]int, error) {
	query := fmt.Sprintf(`SELECT status, COUNT(*) FROM %s.job_queue GROUP BY status`, s.schema)

	rows, err := s.conn().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[state.JobStatus]int, len(state.AllStatuses))
	for _, st := range state.AllStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[state.JobStatus(status)] = count
	}

	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*types.Job, error) {
	var (
		job           types.Job
		payload       []byte
		status        string
		timeoutMs     sql.NullInt64
		timeoutResult sql.NullString
	)

	err := row.Scan(
		&job.JobID,
		&job.QueueName,
		&payload,
		&status,
		&job.StartAfter,
		&job.RetriesRemaining,
		&job.CreatedAt,
		&job.StatusUpdatedAt,
		&timeoutMs,
		&timeoutResult,
	)
	if err != nil {
		return nil, err
	}

	job.Payload = json.RawMessage(payload)
	job.Status = state.JobStatus(status)
	if timeoutMs.Valid {
		job.TimeoutMilliseconds = &timeoutMs.Int64
	}
	if timeoutResult.Valid {
		job.TimeoutWithResult = types.ReleaseResult(timeoutResult.String).Ptr()
	}

	return &job, nil
}

func requireRow(res sql.Result, jobID int64) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("job %d: %w", jobID, types.ErrJobNotFound)
	}
	return nil
}
