package store

import (
	"context"
	"database/sql"

	"github.com/RezaEskandarii/pgqueue/types"
)

// ListOptions filters QueueConfigStore.List. Nil fields are ignored.
type ListOptions struct {
	EndpointActive *bool
	ManualRelease  *bool
}

// QueueConfigStore manages per-queue policy and endpoint bindings.
type QueueConfigStore interface {
	// Get returns nil when the queue has no config row.
	Get(ctx context.Context, queueName string) (*types.QueueConfig, error)

	List(ctx context.Context, opts ListOptions) ([]types.QueueConfig, error)

	// Set upserts the policy. Nil patch fields keep their stored value.
	Set(ctx context.Context, queueName string, patch types.QueueConfigPatch) error

	SetEndpoint(ctx context.Context, queueName string, active bool, details *types.EndpointDetails) error

	// GetQueueEndPointApiKey and SetQueueEndPointApiKey consume proofKey, which must
	// have been registered with the access key registry beforehand.
	GetQueueEndPointApiKey(ctx context.Context, proofKey string, queueName string) (string, error)
	SetQueueEndPointApiKey(ctx context.Context, proofKey string, queueName string, apiKey string) error

	WithTx(tx *sql.Tx) QueueConfigStore
}
