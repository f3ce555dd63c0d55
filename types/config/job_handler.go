package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/RezaEskandarii/pgqueue/types"
)

// HandlerFunc runs one claimed job of a plain (single-step) queue.
// An empty result means complete.
type HandlerFunc func(ctx context.Context, job *types.Job) (types.ReleaseResult, error)

// MethodHandler holds the queue name and the function that processes its jobs.
type MethodHandler struct {
	QueueName string      // Queue whose jobs this handler processes (e.g., "send_email")
	Func      HandlerFunc // The function to execute for this queue
}

type JobHandler struct {
	handlers map[string]HandlerFunc
	mutex    sync.RWMutex
}

func NewJobHandler() *JobHandler {
	return &JobHandler{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a new handler for a queue.
func (jh *JobHandler) Register(queueName string, handler HandlerFunc) error {
	jh.mutex.Lock()
	defer jh.mutex.Unlock()

	if _, exists := jh.handlers[queueName]; exists {
		return fmt.Errorf("handler '%s' already registered", queueName)
	}
	jh.handlers[queueName] = handler
	return nil
}

func (jh *JobHandler) Exists(queueName string) bool {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	_, exists := jh.handlers[queueName]
	return exists
}

func (jh *JobHandler) Execute(ctx context.Context, job *types.Job) (types.ReleaseResult, error) {
	jh.mutex.RLock()
	handler, exists := jh.handlers[job.QueueName]
	jh.mutex.RUnlock()
	if !exists {
		return "", fmt.Errorf("handler '%s' not found", job.QueueName)
	}
	return handler(ctx, job)
}

func (jh *JobHandler) List() []string {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	names := make([]string, 0, len(jh.handlers))
	for name := range jh.handlers {
		names = append(names, name)
	}
	return names
}
