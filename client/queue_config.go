package client

import (
	"context"
	"fmt"

	"github.com/RezaEskandarii/pgqueue/internal/accesskey"
	"github.com/RezaEskandarii/pgqueue/internal/constants"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/google/uuid"
)

// QueueConfig manages the policy of one queue.
type QueueConfig struct {
	configs   store.QueueConfigStore
	registry  accesskey.Registry
	queueName string
}

func NewQueueConfig(configs store.QueueConfigStore, registry accesskey.Registry, queueName string) *QueueConfig {
	return &QueueConfig{
		configs:   configs,
		registry:  registry,
		queueName: queueName,
	}
}

// Get returns nil when the queue was never configured.
func (c *QueueConfig) Get(ctx context.Context) (*types.QueueConfig, error) {
	return c.configs.Get(ctx, c.queueName)
}

func (c *QueueConfig) Set(ctx context.Context, patch types.QueueConfigPatch) error {
	return c.configs.Set(ctx, c.queueName, patch)
}

func (c *QueueConfig) SetEndpoint(ctx context.Context, active bool, details *types.EndpointDetails) error {
	return c.configs.SetEndpoint(ctx, c.queueName, active, details)
}

// RegisterTemporaryKeyForApiAccess issues a single-use key that authorizes one
// read or write of the endpoint api key.
func (c *QueueConfig) RegisterTemporaryKeyForApiAccess(ctx context.Context) (string, error) {
	key := uuid.NewString()
	if err := c.registry.Register(ctx, key, constants.TemporaryAccessKeyTTL); err != nil {
		return "", err
	}
	return key, nil
}

func (c *QueueConfig) GetEndpointApiKey(ctx context.Context) (string, error) {
	proof, err := c.RegisterTemporaryKeyForApiAccess(ctx)
	if err != nil {
		return "", fmt.Errorf("get api key of %q: %w", c.queueName, err)
	}
	return c.configs.GetQueueEndPointApiKey(ctx, proof, c.queueName)
}

func (c *QueueConfig) SetEndpointApiKey(ctx context.Context, apiKey string) error {
	proof, err := c.RegisterTemporaryKeyForApiAccess(ctx)
	if err != nil {
		return fmt.Errorf("set api key of %q: %w", c.queueName, err)
	}
	return c.configs.SetQueueEndPointApiKey(ctx, proof, c.queueName, apiKey)
}
