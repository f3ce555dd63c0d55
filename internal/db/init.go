package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"testing/fstest"

	"github.com/RezaEskandarii/pgqueue/internal/constants"
	"github.com/RezaEskandarii/pgqueue/internal/lock"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Init creates the schema and applies the embedded migrations.
// Only one process migrates at a time: the others wait on the migration lock and
// then find nothing left to apply, so running Init repeatedly is safe.
//
// The steps are:
//  1. Acquire the migration advisory lock.
//  2. Ping the database.
//  3. Create the schema if it does not exist.
//  4. Apply every pending goose migration, with the schema name substituted.
func Init(ctx context.Context, db *sql.DB, schema string, distributedLock lock.DistributedLockManager, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if schema == "" {
		schema = constants.DefaultSchema
	}

	if err := distributedLock.Acquire(ctx, constants.MigrationLock); err != nil {
		return err
	}
	defer func() {
		if err := distributedLock.Release(context.WithoutCancel(ctx), constants.MigrationLock); err != nil {
			logger.Warn("failed to release migration lock", "error", err)
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	quoted := pq.QuoteIdentifier(schema)
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoted); err != nil {
		return fmt.Errorf("create schema %s: %w", quoted, err)
	}

	fsys, err := renderMigrations(quoted)
	if err != nil {
		return err
	}

	goose.SetBaseFS(fsys)
	goose.SetTableName(versionTable(quoted))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	logger.Info("schema is up to date", "schema", schema)
	return nil
}

// versionTable names the goose bookkeeping table inside the quoted schema.
func versionTable(quotedSchema string) string {
	return quotedSchema + ".goose_db_version"
}

// renderMigrations returns the embedded migrations with the schema placeholder
// replaced by the quoted schema name.
func renderMigrations(quotedSchema string) (fs.FS, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return nil, err
	}

	rendered := fstest.MapFS{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := fs.ReadFile(migrations, "migrations/"+entry.Name())
		if err != nil {
			return nil, err
		}
		body := strings.ReplaceAll(string(content), constants.SchemaPlaceholder, quotedSchema)
		rendered[entry.Name()] = &fstest.MapFile{Data: []byte(body)}
	}

	return rendered, nil
}
