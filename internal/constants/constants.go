package constants

import "time"

const (
	MigrationLock = iota + 7001
	ReaperLock
)

var Locks = []int{
	MigrationLock,
	ReaperLock,
}

const (
	DefaultSchema           = "pgqueue_schema"
	DefaultRetries          = 10
	DefaultMaxConcurrency   = -1
	DefaultTimeout          = 5 * time.Minute
	DefaultTimeoutResult    = "failed"
	TemporaryAccessKeyTTL   = 30 * time.Second
	SchemaPlaceholder       = "pgq_schema_placeholder"
	DefaultEndpointTimeout  = 30 * time.Second
	DefaultIdleSleep        = 500 * time.Millisecond
	DefaultReapEverySeconds = 15
)
