package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error formats the field and the message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error lists every field error on its own line.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate checks every section and returns ValidationErrors listing all problems.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateServer(&cfg.Server)
	v.validateScheduler(&cfg.Scheduler)
	v.validatePool(&cfg.Pool)
	v.validateWorker(&cfg.Worker)
	v.validateArchive(&cfg.Archive)
	v.validateLogging(&cfg.Logging)
	v.validateClient(&cfg.Client)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Address == "" {
		v.addError("server.address", "address is required")
	} else if !isValidAddress(cfg.Address) {
		v.addError("server.address", "invalid address format, expected host:port or :port")
	}
	if cfg.ReadTimeout < 0 {
		v.addError("server.read_timeout", "read timeout must be non-negative")
	}
	if cfg.WriteTimeout < 0 {
		v.addError("server.write_timeout", "write timeout must be non-negative")
	}
}

func (v *Validator) validateScheduler(cfg *SchedulerConfig) {
	if cfg.TickInterval <= 0 {
		v.addError("scheduler.tick_interval", "tick interval must be positive")
	}
	if cfg.AbandonedTimeout <= 0 {
		v.addError("scheduler.abandoned_timeout", "abandoned timeout must be positive")
	}
	if cfg.UnresponsiveTimeout <= 0 {
		v.addError("scheduler.unresponsive_timeout", "unresponsive timeout must be positive")
	} else if cfg.UnresponsiveTimeout <= cfg.TickInterval {
		v.addError("scheduler.unresponsive_timeout", "unresponsive timeout must exceed the tick interval")
	}
	if cfg.MessageBuffer < 1 {
		v.addError("scheduler.message_buffer", "message buffer must be at least 1")
	}
}

func (v *Validator) validatePool(cfg *PoolConfig) {
	if cfg.Size < 1 {
		v.addError("pool.size", "pool size must be at least 1")
	}
	if cfg.MaxTasksPerWorker < 0 {
		v.addError("pool.max_tasks_per_worker", "max tasks per worker must be non-negative (0 disables recycling)")
	}
	if cfg.SpawnBackoffMax < 0 {
		v.addError("pool.spawn_backoff_max", "spawn backoff must be non-negative")
	}
	for _, kv := range cfg.Env {
		if !strings.Contains(kv, "=") {
			v.addError("pool.env", fmt.Sprintf("entry %q is not KEY=VALUE", kv))
		}
	}
}

func (v *Validator) validateWorker(cfg *WorkerConfig) {
	if cfg.RelayTimeout < 0 {
		v.addError("worker.relay_timeout", "relay timeout must be non-negative")
	}
	if cfg.OutboxSize < 1 {
		v.addError("worker.outbox_size", "outbox size must be at least 1")
	}
}

func (v *Validator) validateArchive(cfg *ArchiveConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Addr == "" {
		v.addError("archive.addr", "address is required when the archive is enabled")
	} else if !isValidAddress(cfg.Addr) {
		v.addError("archive.addr", "invalid address format, expected host:port")
	}
	if cfg.DB < 0 {
		v.addError("archive.db", "db index must be non-negative")
	}
	if cfg.TTL < 0 {
		v.addError("archive.ttl", "ttl must be non-negative")
	}
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
	validLogOutputs = map[string]bool{"stdout": true, "stderr": true, "file": true, "both": true}
)

func (v *Validator) validateLogging(cfg *LoggingConfig) {
	if !validLogLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", "invalid log level, must be one of: debug, info, warn, error")
	}
	if !validLogFormats[strings.ToLower(cfg.Format)] {
		v.addError("logging.format", "invalid log format, must be one of: json, console")
	}
	output := strings.ToLower(cfg.Output)
	if !validLogOutputs[output] {
		v.addError("logging.output", "invalid log output, must be one of: stdout, stderr, file, both")
	}
	if (output == "file" || output == "both") && cfg.FilePath == "" {
		v.addError("logging.file_path", "file path is required for file output")
	}
}

func (v *Validator) validateClient(cfg *ClientConfig) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		v.addError("client.url", "url must be an absolute http(s) URL")
	}
	if cfg.PollInterval <= 0 {
		v.addError("client.poll_interval", "poll interval must be positive")
	}
}

func isValidAddress(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	return err == nil && port != ""
}
