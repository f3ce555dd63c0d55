package message_broaker

import "context"

type MessageBroker interface {
	Publish(ctx context.Context, message []byte) error
	Consume(ctx context.Context) (<-chan Message, error)
	Close() error
}

// Message is one delivery. It must be acked once its content is durable elsewhere,
// or nacked to put it back on the queue.
type Message struct {
	Body []byte
	ack  func() error
	nack func() error
}

func NewMessage(body []byte, ack, nack func() error) Message {
	return Message{Body: body, ack: ack, nack: nack}
}

func (m Message) Ack() error {
	if m.ack == nil {
		return nil
	}
	return m.ack()
}

func (m Message) Nack() error {
	if m.nack == nil {
		return nil
	}
	return m.nack()
}
