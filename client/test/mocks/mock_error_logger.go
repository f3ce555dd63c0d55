package mocks

import (
	"sync"

	"github.com/RezaEskandarii/pgqueue/types"
)

type LoggedError struct {
	Msg   string
	Type  string
	JobID int64
}

// MockErrorLogger records every call.
type MockErrorLogger struct {
	mu      sync.Mutex
	Entries []LoggedError
}

func (m *MockErrorLogger) Error(msg string, errType string, job *types.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := LoggedError{Msg: msg, Type: errType}
	if job != nil {
		entry.JobID = job.JobID
	}
	m.Entries = append(m.Entries, entry)
}
