package web

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ApiKeyLookup returns the stored endpoint api key of a queue, or "" when the
// queue has none.
type ApiKeyLookup func(ctx context.Context, queueName string) (string, error)

// authorize checks the bearer token against the queue's api key. Queues without
// a key accept every request.
func authorize(c *fiber.Ctx, lookup ApiKeyLookup, queueName string) (int, error) {
	if lookup == nil {
		return fiber.StatusOK, nil
	}

	expected, err := lookup(c.UserContext(), queueName)
	if err != nil {
		return fiber.StatusInternalServerError, err
	}
	if expected == "" {
		return fiber.StatusOK, nil
	}

	rawAuth := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(rawAuth, "Bearer ") {
		return fiber.StatusUnauthorized, errMissingBearer
	}
	token := strings.TrimSpace(strings.TrimPrefix(rawAuth, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return fiber.StatusUnauthorized, errInvalidBearer
	}
	return fiber.StatusOK, nil
}
