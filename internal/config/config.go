package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete clusterd configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pool      PoolConfig      `yaml:"pool"`
	Worker    WorkerConfig    `yaml:"worker"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Logging   LoggingConfig   `yaml:"logging"`
	Client    ClientConfig    `yaml:"client"`
}

// ServerConfig holds the task API listener settings.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"SERVER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
}

// SchedulerConfig holds the tick cadence and the garbage collection timeouts.
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" env:"SCHEDULER_TICK_INTERVAL"`
	// AbandonedTimeout is how long a finished task is kept for polling.
	AbandonedTimeout time.Duration `yaml:"abandoned_timeout" env:"SCHEDULER_ABANDONED_TIMEOUT"`
	// UnresponsiveTimeout is how long an unfinished task may go without a
	// message before it is killed and evicted.
	UnresponsiveTimeout time.Duration `yaml:"unresponsive_timeout" env:"SCHEDULER_UNRESPONSIVE_TIMEOUT"`
	// MessageBuffer is the capacity of the inbound worker message channel.
	MessageBuffer int `yaml:"message_buffer" env:"SCHEDULER_MESSAGE_BUFFER"`
}

// PoolConfig holds the worker process pool settings. They are read once at startup.
type PoolConfig struct {
	Size              int `yaml:"size" env:"POOL_SIZE"`
	MaxTasksPerWorker int `yaml:"max_tasks_per_worker" env:"POOL_MAX_TASKS_PER_WORKER"`
	// Command is the worker argv. Empty means the running executable with the
	// "worker" subcommand.
	Command         []string      `yaml:"command" env:"POOL_COMMAND"`
	Env             []string      `yaml:"env" env:"POOL_ENV"`
	SpawnBackoffMax time.Duration `yaml:"spawn_backoff_max" env:"POOL_SPAWN_BACKOFF_MAX"`
}

// WorkerConfig holds settings used inside worker processes.
type WorkerConfig struct {
	RelayTimeout time.Duration `yaml:"relay_timeout" env:"WORKER_RELAY_TIMEOUT"`
	OutboxSize   int           `yaml:"outbox_size" env:"WORKER_OUTBOX_SIZE"`
}

// ArchiveConfig configures the Redis archive of evicted tasks.
type ArchiveConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ARCHIVE_ENABLED"`
	Addr     string        `yaml:"addr" env:"ARCHIVE_ADDR"`
	Password string        `yaml:"password" env:"ARCHIVE_PASSWORD"`
	DB       int           `yaml:"db" env:"ARCHIVE_DB"`
	Prefix   string        `yaml:"prefix" env:"ARCHIVE_PREFIX"`
	TTL      time.Duration `yaml:"ttl" env:"ARCHIVE_TTL"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE"`
}

// ClientConfig is used by the task subcommands talking to a running daemon.
type ClientConfig struct {
	URL          string        `yaml:"url" env:"CLIENT_URL"`
	Timeout      time.Duration `yaml:"timeout" env:"CLIENT_TIMEOUT"`
	PollInterval time.Duration `yaml:"poll_interval" env:"CLIENT_POLL_INTERVAL"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "127.0.0.1:2224",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			TickInterval:        100 * time.Millisecond,
			AbandonedTimeout:    time.Minute,
			UnresponsiveTimeout: 10 * time.Minute,
			MessageBuffer:       1024,
		},
		Pool: PoolConfig{
			Size:              4,
			MaxTasksPerWorker: 100,
			SpawnBackoffMax:   30 * time.Second,
		},
		Worker: WorkerConfig{
			RelayTimeout: 100 * time.Millisecond,
			OutboxSize:   64,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			Prefix:  "clusterd:",
			TTL:     24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "/var/log/clusterd/clusterd.log",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Client: ClientConfig{
			URL:          "http://127.0.0.1:2224",
			Timeout:      10 * time.Second,
			PollInterval: 500 * time.Millisecond,
		},
	}
}

// Serialize renders the configuration as YAML.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses YAML on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// Validate checks the configuration with a fresh Validator.
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}
