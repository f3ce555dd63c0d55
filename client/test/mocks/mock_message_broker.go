package mocks

import (
	"context"

	"github.com/RezaEskandarii/pgqueue/internal/message_broaker"
)

// MockMessageBroker is a mock implementation of message_broaker.MessageBroker for testing.
type MockMessageBroker struct {
	PublishFunc func(ctx context.Context, message []byte) error
	ConsumeFunc func(ctx context.Context) (<-chan message_broaker.Message, error)
	CloseFunc   func() error
}

func (m *MockMessageBroker) Publish(ctx context.Context, message []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, message)
	}
	return nil
}

func (m *MockMessageBroker) Consume(ctx context.Context) (<-chan message_broaker.Message, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx)
	}
	ch := make(chan message_broaker.Message)
	close(ch)
	return ch, nil
}

func (m *MockMessageBroker) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
