package test

import (
	"context"
	"errors"
	"testing"

	"github.com/RezaEskandarii/pgqueue/client"
	"github.com/RezaEskandarii/pgqueue/client/test/mocks"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vaultConfigStore keeps api keys in memory and checks proofs against the registry.
func vaultConfigStore(registry *mocks.MockRegistry) *mocks.MockQueueConfigStore {
	keys := map[string]string{}
	verify := func(ctx context.Context, proofKey string) error {
		ok, err := registry.Consume(ctx, proofKey)
		if err != nil {
			return err
		}
		if !ok {
			return types.ErrAccessDenied
		}
		return nil
	}
	return &mocks.MockQueueConfigStore{
		GetQueueEndPointApiKeyFunc: func(ctx context.Context, proofKey string, queueName string) (string, error) {
			if err := verify(ctx, proofKey); err != nil {
				return "", err
			}
			return keys[queueName], nil
		},
		SetQueueEndPointApiKeyFunc: func(ctx context.Context, proofKey string, queueName string, apiKey string) error {
			if err := verify(ctx, proofKey); err != nil {
				return err
			}
			keys[queueName] = apiKey
			return nil
		},
	}
}

func TestQueueConfig_ApiKeyRoundTrip(t *testing.T) {
	ctx := context.Background()
	registry := &mocks.MockRegistry{}
	qc := client.NewQueueConfig(vaultConfigStore(registry), registry, "emails")

	key, err := qc.GetEndpointApiKey(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, qc.SetEndpointApiKey(ctx, "s3cret"))
	key, err = qc.GetEndpointApiKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", key)
	assert.Zero(t, registry.Outstanding(), "every proof key is single use")
}

func TestQueueConfig_ProofKeyIsSingleUse(t *testing.T) {
	ctx := context.Background()
	registry := &mocks.MockRegistry{}
	configs := vaultConfigStore(registry)
	qc := client.NewQueueConfig(configs, registry, "emails")

	proof, err := qc.RegisterTemporaryKeyForApiAccess(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, proof)

	_, err = configs.GetQueueEndPointApiKey(ctx, proof, "emails")
	require.NoError(t, err)
	_, err = configs.GetQueueEndPointApiKey(ctx, proof, "emails")
	assert.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestQueueConfig_RegisterFails(t *testing.T) {
	registry := &mocks.MockRegistry{RegisterErr: errors.New("redis down")}
	qc := client.NewQueueConfig(vaultConfigStore(registry), registry, "emails")

	_, err := qc.GetEndpointApiKey(context.Background())
	assert.ErrorContains(t, err, "redis down")
	assert.ErrorContains(t, qc.SetEndpointApiKey(context.Background(), "x"), "redis down")
}

func TestQueueConfig_DelegatesToStore(t *testing.T) {
	var (
		setQueue   string
		patch      types.QueueConfigPatch
		endpointOn bool
		details    *types.EndpointDetails
	)
	configs := &mocks.MockQueueConfigStore{
		GetFunc: func(ctx context.Context, queueName string) (*types.QueueConfig, error) {
			return &types.QueueConfig{QueueName: queueName, MaxConcurrency: 2}, nil
		},
		SetFunc: func(ctx context.Context, queueName string, p types.QueueConfigPatch) error {
			setQueue, patch = queueName, p
			return nil
		},
		SetEndpointFunc: func(ctx context.Context, queueName string, active bool, d *types.EndpointDetails) error {
			endpointOn, details = active, d
			return nil
		},
	}
	qc := client.NewQueueConfig(configs, &mocks.MockRegistry{}, "emails")
	ctx := context.Background()

	cfg, err := qc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxConcurrency)

	limit := 5
	require.NoError(t, qc.Set(ctx, types.QueueConfigPatch{MaxConcurrency: &limit}))
	assert.Equal(t, "emails", setQueue)
	assert.Equal(t, &limit, patch.MaxConcurrency)

	ep := &types.EndpointDetails{Method: types.MethodPOST, URL: "https://example.com/jobs", ManualRelease: true}
	require.NoError(t, qc.SetEndpoint(ctx, true, ep))
	assert.True(t, endpointOn)
	assert.Equal(t, ep, details)
}
