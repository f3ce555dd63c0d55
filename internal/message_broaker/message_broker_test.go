package message_broaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_AckAndNack(t *testing.T) {
	var acked, nacked int
	m := NewMessage([]byte("job"),
		func() error { acked++; return nil },
		func() error { nacked++; return assert.AnError },
	)

	require.NoError(t, m.Ack())
	assert.ErrorIs(t, m.Nack(), assert.AnError)
	assert.Equal(t, 1, acked)
	assert.Equal(t, 1, nacked)
	assert.Equal(t, []byte("job"), m.Body)
}

func TestMessage_ZeroValue(t *testing.T) {
	var m Message
	assert.NoError(t, m.Ack())
	assert.NoError(t, m.Nack())
}

func TestRabbitMQImplementsMessageBroker(t *testing.T) {
	var _ MessageBroker = (*RabbitMQ)(nil)
}
