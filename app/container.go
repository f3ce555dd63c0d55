package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/RezaEskandarii/pgqueue/client"
	"github.com/RezaEskandarii/pgqueue/internal/accesskey"
	"github.com/RezaEskandarii/pgqueue/internal/constants"
	"github.com/RezaEskandarii/pgqueue/internal/lock"
	"github.com/RezaEskandarii/pgqueue/internal/message_broaker"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/internal/store/postgres"
	"github.com/RezaEskandarii/pgqueue/types/config"
	"github.com/RezaEskandarii/pgqueue/web"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies. It is the single source of truth
// for dependency injection and ensures connections and services are created once.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Storage connections (created once, shared by all stores)
	DB    *sql.DB
	Redis *redis.Client

	JobStore         store.JobStore
	QueueConfigStore store.QueueConfigStore
	AccessKeys       accesskey.Registry

	// Infrastructure
	LockManager   lock.DistributedLockManager
	MessageBroker message_broaker.MessageBroker

	JobHandler *config.JobHandler
	JobManager *client.JobManager

	mu         sync.Mutex
	multiSteps []*client.MultiStepQueue
}

// NewContainer creates and wires all dependencies. Single entry point for DI.
// Call this once per application lifecycle.
// Pass optional WithDB, WithRedis to inject connections for testing.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}
	logger := opt.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("instance", cfg.Instance)

	if cfg.StorageDriver != config.Postgres {
		return nil, fmt.Errorf("unsupported storage driver: %v", cfg.StorageDriver)
	}

	db := opt.db
	if db == nil {
		var err error
		if db, err = openPostgresDB(cfg.PostgresConfig.ConnectionUrl); err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
	}

	redisClient := opt.redis
	var registry accesskey.Registry
	switch cfg.AccessKeyDriver {
	case config.Redis:
		if redisClient == nil {
			var err error
			if redisClient, err = openRedis(ctx, cfg.RedisConfig); err != nil {
				return nil, fmt.Errorf("init access keys: %w", err)
			}
		}
		registry = accesskey.NewRedisRegistry(redisClient)
	default:
		registry = accesskey.NewPostgresRegistry(db, cfg.Schema)
	}

	messageBroker := opt.broker
	if messageBroker == nil && cfg.UseQueueWriter {
		mBroker, err := message_broaker.NewRabbitMQ(*cfg.RabbitMQConfig, cfg.WorkerCount*10)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		messageBroker = mBroker
	}

	jobHandler := config.NewJobHandler()
	for _, h := range cfg.Handlers {
		if err := jobHandler.Register(h.QueueName, h.Func); err != nil {
			return nil, err
		}
	}

	jobStore := postgres.NewPostgresJobStore(db, cfg.Schema)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		DB:               db,
		Redis:            redisClient,
		JobStore:         jobStore,
		QueueConfigStore: postgres.NewPostgresQueueConfigStore(db, cfg.Schema, registry),
		AccessKeys:       registry,
		LockManager:      lock.NewPostgresDistributedLockManager(db),
		MessageBroker:    messageBroker,
		JobHandler:       jobHandler,
		JobManager:       client.NewJobManager(jobStore, messageBroker, logger),
	}, nil
}

// Queue returns a handle on one plain queue.
func (c *Container) Queue(name string) *client.Queue {
	return client.NewQueue(c.JobStore, name)
}

func (c *Container) QueueConfig(name string) *client.QueueConfig {
	return client.NewQueueConfig(c.QueueConfigStore, c.AccessKeys, name)
}

// RegisterMultiStepQueue builds a multi-step queue and adds it to the processors
// served by workers and the receiver.
func (c *Container) RegisterMultiStepQueue(queueName string, steps []client.Step, opts ...client.ProcessorOption) (*client.MultiStepQueue, error) {
	opts = append([]client.ProcessorOption{client.WithLogger(c.Logger)}, opts...)
	m, err := client.NewMultiStepQueue(c.JobStore, queueName, steps, opts...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.multiSteps {
		if existing.QueueName() == m.QueueName() && existing.ID() == m.ID() {
			return nil, fmt.Errorf("multi-step %q on queue %q is already registered", m.ID(), queueName)
		}
	}
	c.multiSteps = append(c.multiSteps, m)
	return m, nil
}

// Processors lists registered multi-step queues first, then one handler per
// plain queue in JobHandler.
func (c *Container) Processors() []client.Processor {
	c.mu.Lock()
	defer c.mu.Unlock()

	processors := make([]client.Processor, 0, len(c.multiSteps))
	for _, m := range c.multiSteps {
		processors = append(processors, m)
	}
	for _, h := range client.NewQueueHandlers(c.JobStore, c.JobHandler, client.WithLogger(c.Logger)) {
		processors = append(processors, h)
	}
	return processors
}

func (c *Container) NewWorker() *client.Worker {
	return client.NewWorker(c.Processors(), c.Config.WorkerCount, c.Config.PollInterval, c.Logger)
}

func (c *Container) NewDispatcher() *client.Dispatcher {
	return client.NewDispatcher(c.JobStore, c.QueueConfigStore, c.AccessKeys,
		client.DispatcherOptionsFromConfig(c.Config.Dispatcher, c.Logger))
}

// NewReaper also purges expired access keys when they live in Postgres.
func (c *Container) NewReaper() (*client.Reaper, error) {
	r, err := client.NewReaper(c.JobStore, c.LockManager, c.Config.ReaperSchedule, c.Logger)
	if err != nil {
		return nil, err
	}
	if purger, ok := c.AccessKeys.(client.AccessKeyPurger); ok {
		r.WithAccessKeyPurger(purger)
	}
	return r, nil
}

// NewReceiver serves the registered processors over HTTP. Requests are checked
// against each queue's stored endpoint api key, cached for a short while since
// every lookup runs the access key handshake.
func (c *Container) NewReceiver() *web.HttpRouteHandler {
	lookup := func(ctx context.Context, queueName string) (string, error) {
		return c.QueueConfig(queueName).GetEndpointApiKey(ctx)
	}
	cached := web.CacheApiKeys(lookup, config.DefaultApiKeyCacheTTL)
	return web.NewRouteHandler(c.Processors(), cached, c.Config.Receiver.Port, c.Config.Receiver.MaxInFlight, c.Logger)
}

// Close releases held advisory locks and closes every connection.
func (c *Container) Close() error {
	ctx := context.Background()
	for _, lockID := range constants.Locks {
		if err := c.LockManager.Release(ctx, lockID); err != nil {
			c.Logger.Debug("lock not released", "lock_id", lockID, "error", err)
		}
	}

	var errs []error
	if c.MessageBroker != nil {
		errs = append(errs, c.MessageBroker.Close())
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	errs = append(errs, c.DB.Close())
	return errors.Join(errs...)
}
