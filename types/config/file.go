package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type FileConfig struct {
	Instance string `yaml:"instance"`
	Schema   string `yaml:"schema"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	AccessKeys struct {
		Driver string `yaml:"driver"`
		Redis  struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"accessKeys"`

	Worker struct {
		Count          int    `yaml:"count"`
		PollIntervalMs int    `yaml:"pollIntervalMs"`
		ReaperSchedule string `yaml:"reaperSchedule"`
	} `yaml:"worker"`

	Dispatcher struct {
		RunSeconds       int `yaml:"runSeconds"`
		MaxLoops         int `yaml:"maxLoops"`
		ExitInactiveSecs int `yaml:"exitAfterInactiveSeconds"`
		IdleSleepMs      int `yaml:"idleSleepMs"`
		ReapEverySeconds int `yaml:"reapEverySeconds"`
		MaxInFlight      int `yaml:"maxInFlight"`
	} `yaml:"dispatcher"`

	Receiver struct {
		Port        uint `yaml:"port"`
		MaxInFlight int  `yaml:"maxInFlight"`
	} `yaml:"receiver"`

	RabbitMQ struct {
		URL        string `yaml:"url"`
		Exchange   string `yaml:"exchange"`
		Queue      string `yaml:"queue"`
		RoutingKey string `yaml:"routingKey"`
	} `yaml:"rabbitmq"`
}

// Load reads a YAML config file and builds a validated Config from it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	var fc FileConfig
	if err := yaml.NewDecoder(f).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fc.Build()
}

// Build converts the file representation into options. Unset values keep defaults.
func (fc FileConfig) Build() (*Config, error) {
	var opts []ConfigOption

	if fc.Database.DSN != "" {
		opts = append(opts, WithPostgresConfig(PostgresConfig{ConnectionUrl: fc.Database.DSN}))
	}
	if fc.Schema != "" {
		opts = append(opts, WithSchema(fc.Schema))
	}

	driver, ok := ParseStorageDriver(fc.AccessKeys.Driver)
	if !ok {
		return nil, fmt.Errorf("unknown access key driver %q", fc.AccessKeys.Driver)
	}
	if driver == Redis {
		opts = append(opts, WithRedisAccessKeys(RedisConfig{
			Address:  fc.AccessKeys.Redis.Address,
			Password: fc.AccessKeys.Redis.Password,
			DB:       fc.AccessKeys.Redis.DB,
		}))
	}

	if fc.Worker.Count != 0 {
		opts = append(opts, WithWorkerCount(fc.Worker.Count))
	}
	if fc.Worker.PollIntervalMs != 0 {
		opts = append(opts, WithPollInterval(time.Duration(fc.Worker.PollIntervalMs)*time.Millisecond))
	}
	if fc.Worker.ReaperSchedule != "" {
		opts = append(opts, WithReaperSchedule(fc.Worker.ReaperSchedule))
	}

	d := fc.Dispatcher
	if d != (FileConfig{}).Dispatcher {
		opts = append(opts, WithDispatcherConfig(DispatcherConfig{
			RunDuration:       time.Duration(d.RunSeconds) * time.Second,
			MaxLoops:          d.MaxLoops,
			ExitAfterInactive: time.Duration(d.ExitInactiveSecs) * time.Second,
			IdleSleep:         time.Duration(d.IdleSleepMs) * time.Millisecond,
			ReapEverySeconds:  d.ReapEverySeconds,
			MaxInFlight:       d.MaxInFlight,
		}))
	}

	if fc.Receiver.Port != 0 {
		maxInFlight := fc.Receiver.MaxInFlight
		if maxInFlight == 0 {
			maxInFlight = DefaultReceiverMaxFlight
		}
		opts = append(opts, WithReceiver(fc.Receiver.Port, maxInFlight))
	}

	if fc.RabbitMQ.URL != "" {
		opts = append(opts, WithRabbitMQConfig(RabbitMQConfig{
			URL:         fc.RabbitMQ.URL,
			Exchange:    fc.RabbitMQ.Exchange,
			Queue:       fc.RabbitMQ.Queue,
			RoutingKey:  fc.RabbitMQ.RoutingKey,
			ContentType: "application/json",
		}))
	}

	return NewConfig(fc.Instance, opts...)
}
