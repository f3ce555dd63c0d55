package config

type StorageDriver int

const (
	Postgres StorageDriver = iota + 1
	Redis
)

type MessageQueueDriver int

const (
	RabbitMQ MessageQueueDriver = iota + 1
)

func (d MessageQueueDriver) String() string {
	switch d {
	case RabbitMQ:
		return "rabbitmq"
	default:
		return "unknown"
	}
}

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Redis:
		return "redis"
	case Postgres:
		return "postgres"
	}
	return "unknown"
}

func ParseStorageDriver(s string) (StorageDriver, bool) {
	switch s {
	case "postgres", "":
		return Postgres, true
	case "redis":
		return Redis, true
	}
	return 0, false
}
