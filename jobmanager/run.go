package jobmanager

import (
	"context"
	"log"
	"runtime"

	"github.com/RezaEskandarii/pgqueue/app"
	"github.com/RezaEskandarii/pgqueue/internal/db"
	"github.com/RezaEskandarii/pgqueue/types/config"
)

// New initializes the whole queue system from cfg.
//
// The function performs the following steps:
//  1. Connects to Postgres and, when configured, Redis and RabbitMQ.
//  2. Registers the plain queue handlers defined in cfg.Handlers.
//  3. Builds the stores, the access-key registry and the distributed lock manager.
//  4. Creates the schema and applies migrations under the migration lock.
//
// The returned container hands out workers, dispatchers, reapers and receivers;
// callers start the ones their process role needs.
func New(ctx context.Context, cfg *config.Config, opts ...app.ContainerOption) (*app.Container, error) {
	log.Printf("GOMAXPROCS Is: %d\n", runtime.GOMAXPROCS(0))

	container, err := app.NewContainer(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	if err := db.Init(ctx, container.DB, cfg.Schema, container.LockManager, container.Logger); err != nil {
		_ = container.Close()
		return nil, err
	}

	return container, nil
}
