package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RezaEskandarii/pgqueue/internal/accesskey"
	"github.com/RezaEskandarii/pgqueue/internal/constants"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/lib/pq"
)

const queueConfigColumns = `queue_name, max_concurrency, timeout_milliseconds, timeout_with_result,
		pause_between_retries_milliseconds, endpoint_active, endpoint_method,
		endpoint_bearer_token_location, endpoint_bearer_token_inline_value, endpoint_url,
		endpoint_timeout_milliseconds, endpoint_manual_release, created_at, updated_at`

type PostgresQueueConfigStore struct {
	db       *sql.DB
	tx       *sql.Tx
	schema   string
	registry accesskey.Registry
}

func NewPostgresQueueConfigStore(db *sql.DB, schema string, registry accesskey.Registry) *PostgresQueueConfigStore {
	return &PostgresQueueConfigStore{
		db:       db,
		schema:   pq.QuoteIdentifier(schema),
		registry: registry,
	}
}

func (s *PostgresQueueConfigStore) WithTx(tx *sql.Tx) store.QueueConfigStore {
	return &PostgresQueueConfigStore{
		db:       s.db,
		tx:       tx,
		schema:   s.schema,
		registry: s.registry,
	}
}

func (s *PostgresQueueConfigStore) conn() store.DBTX {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresQueueConfigStore) Get(ctx context.Context, queueName string) (*types.QueueConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s.queue_config WHERE queue_name = $1`, queueConfigColumns, s.schema)

	cfg, err := scanQueueConfig(s.conn().QueryRowContext(ctx, query, queueName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config of queue %q: %w", queueName, err)
	}
	return cfg, nil
}

func (s *PostgresQueueConfigStore) List(ctx context.Context, opts store.ListOptions) ([]types.QueueConfig, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s.queue_config
		WHERE ($1::boolean IS NULL OR endpoint_active = $1)
		  AND ($2::boolean IS NULL OR endpoint_manual_release = $2)
		ORDER BY queue_name`, queueConfigColumns, s.schema)

	var active, manual any
	if opts.EndpointActive != nil {
		active = *opts.EndpointActive
	}
	if opts.ManualRelease != nil {
		manual = *opts.ManualRelease
	}

	rows, err := s.conn().QueryContext(ctx, query, active, manual)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue configs: %w", err)
	}
	defer rows.Close()

	var configs []types.QueueConfig
	for rows.Next() {
		cfg, err := scanQueueConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}

	return configs, rows.Err()
}

// Set inserts the queue with defaults for missing fields, or updates only the
// fields present in patch.
func (s *PostgresQueueConfigStore) Set(ctx context.Context, queueName string, patch types.QueueConfigPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s.queue_config (
			queue_name,
			max_concurrency,
			timeout_milliseconds,
			timeout_with_result,
			pause_between_retries_milliseconds
		)
		VALUES (
			$1,
			COALESCE($2::integer, %[2]d),
			COALESCE($3::bigint, %[3]d),
			COALESCE($4::text, '%[4]s'),
			COALESCE($5::bigint, 0)
		)
		ON CONFLICT (queue_name) DO UPDATE SET
			max_concurrency = COALESCE($2::integer, queue_config.max_concurrency),
			timeout_milliseconds = COALESCE($3::bigint, queue_config.timeout_milliseconds),
			timeout_with_result = COALESCE($4::text, queue_config.timeout_with_result),
			pause_between_retries_milliseconds = COALESCE($5::bigint, queue_config.pause_between_retries_milliseconds),
			updated_at = NOW()`,
		s.schema,
		constants.DefaultMaxConcurrency,
		constants.DefaultTimeout.Milliseconds(),
		constants.DefaultTimeoutResult,
	)

	var maxConcurrency, timeoutMs, timeoutResult, pauseMs any
	if patch.MaxConcurrency != nil {
		maxConcurrency = *patch.MaxConcurrency
	}
	if patch.TimeoutMilliseconds != nil {
		timeoutMs = *patch.TimeoutMilliseconds
	}
	if patch.TimeoutWithResult != nil {
		timeoutResult = string(*patch.TimeoutWithResult)
	}
	if patch.PauseBetweenRetriesMilliseconds != nil {
		pauseMs = *patch.PauseBetweenRetriesMilliseconds
	}

	_, err := s.conn().ExecContext(ctx, query, queueName, maxConcurrency, timeoutMs, timeoutResult, pauseMs)
	if err != nil {
		return fmt.Errorf("failed to set config of queue %q: %w", queueName, err)
	}
	return nil
}

// SetEndpoint binds the queue to an HTTP endpoint. Deactivating only clears the
// flag so the stored endpoint and policy survive.
func (s *PostgresQueueConfigStore) SetEndpoint(ctx context.Context, queueName string, active bool, details *types.EndpointDetails) error {
	if !active {
		query := fmt.Sprintf(`
			INSERT INTO %s.queue_config (queue_name, endpoint_active)
			VALUES ($1, FALSE)
			ON CONFLICT (queue_name) DO UPDATE SET
				endpoint_active = FALSE,
				updated_at = NOW()`, s.schema)

		if _, err := s.conn().ExecContext(ctx, query, queueName); err != nil {
			return fmt.Errorf("failed to deactivate endpoint of queue %q: %w", queueName, err)
		}
		return nil
	}

	if details == nil {
		return types.ErrEndpointDetailsRequired
	}
	if err := details.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.queue_config (
			queue_name,
			endpoint_active,
			endpoint_method,
			endpoint_bearer_token_location,
			endpoint_bearer_token_inline_value,
			endpoint_url,
			endpoint_timeout_milliseconds,
			endpoint_manual_release
		)
		VALUES ($1, TRUE, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (queue_name) DO UPDATE SET
			endpoint_active = TRUE,
			endpoint_method = EXCLUDED.endpoint_method,
			endpoint_bearer_token_location = EXCLUDED.endpoint_bearer_token_location,
			endpoint_bearer_token_inline_value = EXCLUDED.endpoint_bearer_token_inline_value,
			endpoint_url = EXCLUDED.endpoint_url,
			endpoint_timeout_milliseconds = EXCLUDED.endpoint_timeout_milliseconds,
			endpoint_manual_release = EXCLUDED.endpoint_manual_release,
			updated_at = NOW()`, s.schema)

	_, err := s.conn().ExecContext(ctx, query,
		queueName,
		string(details.Method),
		string(details.BearerTokenLocation),
		details.BearerTokenInlineValue,
		details.URL,
		details.TimeoutMilliseconds,
		details.ManualRelease,
	)
	if err != nil {
		return fmt.Errorf("failed to set endpoint of queue %q: %w", queueName, err)
	}
	return nil
}

// GetQueueEndPointApiKey returns an empty string when no key was ever set.
func (s *PostgresQueueConfigStore) GetQueueEndPointApiKey(ctx context.Context, proofKey string, queueName string) (string, error) {
	if err := s.consumeProof(ctx, proofKey); err != nil {
		return "", err
	}

	query := fmt.Sprintf(`SELECT api_key FROM %s.queue_endpoint_api_keys WHERE queue_name = $1`, s.schema)

	var apiKey string
	err := s.conn().QueryRowContext(ctx, query, queueName).Scan(&apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read api key of queue %q: %w", queueName, err)
	}
	return apiKey, nil
}

func (s *PostgresQueueConfigStore) SetQueueEndPointApiKey(ctx context.Context, proofKey string, queueName string, apiKey string) error {
	if err := s.consumeProof(ctx, proofKey); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.queue_endpoint_api_keys (queue_name, api_key, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (queue_name) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			updated_at = NOW()`, s.schema)

	if _, err := s.conn().ExecContext(ctx, query, queueName, apiKey); err != nil {
		return fmt.Errorf("failed to write api key of queue %q: %w", queueName, err)
	}
	return nil
}

func (s *PostgresQueueConfigStore) consumeProof(ctx context.Context, proofKey string) error {
	if proofKey == "" {
		return types.ErrAccessDenied
	}
	ok, err := s.registry.Consume(ctx, proofKey)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrAccessDenied
	}
	return nil
}

func scanQueueConfig(row rowScanner) (*types.QueueConfig, error) {
	var (
		cfg           types.QueueConfig
		timeoutResult string
		method        string
		tokenLocation string
	)

	err := row.Scan(
		&cfg.QueueName,
		&cfg.MaxConcurrency,
		&cfg.TimeoutMilliseconds,
		&timeoutResult,
		&cfg.PauseBetweenRetriesMilliseconds,
		&cfg.EndpointActive,
		&method,
		&tokenLocation,
		&cfg.BearerTokenInlineValue,
		&cfg.URL,
		&cfg.EndpointDetails.TimeoutMilliseconds,
		&cfg.ManualRelease,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.TimeoutWithResult = types.ReleaseResult(timeoutResult)
	cfg.Method = types.EndpointMethod(method)
	cfg.BearerTokenLocation = types.BearerTokenLocation(tokenLocation)
	return &cfg, nil
}
