package accesskey

import (
	"context"
	"time"
)

// Registry holds single-use keys that prove a caller went through the
// registration step before touching a queue's endpoint credential.
type Registry interface {
	Register(ctx context.Context, key string, ttl time.Duration) error
	// Consume removes the key and reports whether it existed and had not expired.
	Consume(ctx context.Context, key string) (bool, error)
}
