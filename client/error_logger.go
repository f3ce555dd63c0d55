package client

import (
	"log/slog"

	"github.com/RezaEskandarii/pgqueue/types"
)

// ErrorLogger receives handler failures of processors.
type ErrorLogger interface {
	Error(msg string, errType string, job *types.Job)
}

type SlogErrorLogger struct {
	logger *slog.Logger
}

func NewSlogErrorLogger(logger *slog.Logger) *SlogErrorLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogErrorLogger{logger: logger}
}

func (l *SlogErrorLogger) Error(msg string, errType string, job *types.Job) {
	attrs := []any{"type", errType}
	if job != nil {
		attrs = append(attrs, "job_id", job.JobID, "queue", job.QueueName)
	}
	l.logger.Error(msg, attrs...)
}
