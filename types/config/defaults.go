package config

import (
	"time"

	"github.com/RezaEskandarii/pgqueue/internal/constants"
)

const (
	DefaultWorkerCount        = 5
	DefaultPollInterval       = 500 * time.Millisecond
	DefaultStorageDriver      = Postgres
	DefaultAccessKeyDriver    = Postgres
	DefaultReaperSchedule     = "@every 15s"
	DefaultDispatcherDuration = 30 * time.Second
	DefaultReceiverPort       = 8090
	DefaultReceiverMaxFlight  = 16
	DefaultApiKeyCacheTTL     = 30 * time.Second
	DefaultDispatcherInFlight = 64
	DefaultSchema             = constants.DefaultSchema
)
