package accesskey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type PostgresRegistry struct {
	db    *sql.DB
	table string
}

func NewPostgresRegistry(db *sql.DB, schema string) *PostgresRegistry {
	return &PostgresRegistry{
		db:    db,
		table: pq.QuoteIdentifier(schema) + ".temporary_access_keys",
	}
}

func (r *PostgresRegistry) Register(ctx context.Context, key string, ttl time.Duration) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (access_key, expires_at)
		VALUES ($1, NOW() + $2::bigint * INTERVAL '1 millisecond')`, r.table)

	if _, err := r.db.ExecContext(ctx, query, key, ttl.Milliseconds()); err != nil {
		return fmt.Errorf("failed to register access key: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Consume(ctx context.Context, key string) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE access_key = $1 AND expires_at > NOW()
		RETURNING access_key`, r.table)

	var consumed string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume access key: %w", err)
	}
	return true, nil
}

// PurgeExpired deletes keys that were registered but never used.
func (r *PostgresRegistry) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= NOW()`, r.table))
	if err != nil {
		return 0, fmt.Errorf("failed to purge access keys: %w", err)
	}
	return res.RowsAffected()
}
