package mocks

import (
	"context"
	"database/sql"

	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
)

// MockQueueConfigStore is a mock implementation of store.QueueConfigStore for testing.
type MockQueueConfigStore struct {
	GetFunc                    func(ctx context.Context, queueName string) (*types.QueueConfig, error)
	ListFunc                   func(ctx context.Context, opts store.ListOptions) ([]types.QueueConfig, error)
	SetFunc                    func(ctx context.Context, queueName string, patch types.QueueConfigPatch) error
	SetEndpointFunc            func(ctx context.Context, queueName string, active bool, details *types.EndpointDetails) error
	GetQueueEndPointApiKeyFunc func(ctx context.Context, proofKey string, queueName string) (string, error)
	SetQueueEndPointApiKeyFunc func(ctx context.Context, proofKey string, queueName string, apiKey string) error
}

func (m *MockQueueConfigStore) Get(ctx context.Context, queueName string) (*types.QueueConfig, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, queueName)
	}
	return nil, nil
}

func (m *MockQueueConfigStore) List(ctx context.Context, opts store.ListOptions) ([]types.QueueConfig, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, opts)
	}
	return nil, nil
}

func (m *MockQueueConfigStore) Set(ctx context.Context, queueName string, patch types.QueueConfigPatch) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, queueName, patch)
	}
	return nil
}

func (m *MockQueueConfigStore) SetEndpoint(ctx context.Context, queueName string, active bool, details *types.EndpointDetails) error {
	if m.SetEndpointFunc != nil {
		return m.SetEndpointFunc(ctx, queueName, active, details)
	}
	return nil
}

func (m *MockQueueConfigStore) GetQueueEndPointApiKey(ctx context.Context, proofKey string, queueName string) (string, error) {
	if m.GetQueueEndPointApiKeyFunc != nil {
		return m.GetQueueEndPointApiKeyFunc(ctx, proofKey, queueName)
	}
	return "", nil
}

func (m *MockQueueConfigStore) SetQueueEndPointApiKey(ctx context.Context, proofKey string, queueName string, apiKey string) error {
	if m.SetQueueEndPointApiKeyFunc != nil {
		return m.SetQueueEndPointApiKeyFunc(ctx, proofKey, queueName, apiKey)
	}
	return nil
}

func (m *MockQueueConfigStore) WithTx(tx *sql.Tx) store.QueueConfigStore {
	return m
}

var _ store.QueueConfigStore = (*MockQueueConfigStore)(nil)
