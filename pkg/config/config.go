// Package config loads the job system's ambient configuration: worker
// pool sizing, per-type concurrency limits, store location, shutdown
// grace window, and logging. Configuration is loaded from YAML with
// environment variable overrides, following the same layered-default
// pattern the rest of the corpus uses for its own config packages.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete job system configuration.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Shutdown  ShutdownConfig  `yaml:"shutdown" json:"shutdown"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// SchedulerConfig controls the worker pool and per-type admission limits.
type SchedulerConfig struct {
	WorkerPoolSize int `yaml:"worker_pool_size" json:"worker_pool_size"`

	// TypeLimits caps concurrently-running jobs per registered type name.
	// A type with no entry here is unbounded except by WorkerPoolSize.
	TypeLimits map[string]int `yaml:"type_limits" json:"type_limits"`

	// QueueCapacity is validated (it must be at least 1) but is not passed
	// to the scheduler: its priority queue is unbounded and Dispatch never
	// blocks on a full queue.
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`
}

// StoreConfig controls where job records and checkpoints are persisted.
type StoreConfig struct {
	JournalPath string `yaml:"journal_path" json:"journal_path"`

	// SyncWrites forces an fsync after every record write. Off by default
	// for throughput; enable for crash-recovery guarantees beyond what the
	// store's write-to-temp-file-then-rename of its snapshot already provides.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// ShutdownConfig controls the graceful-shutdown grace window.
type ShutdownConfig struct {
	GraceWindow time.Duration `yaml:"grace_window" json:"grace_window"`
}

// LoggingConfig holds the ambient logger's settings. Level is applied;
// Format is handed to the logger, which always writes text lines; Output
// is not read, and the logger writes to stdout.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// DefaultConfig provides sensible defaults when no config file is found.
var DefaultConfig = Config{
	Scheduler: SchedulerConfig{
		WorkerPoolSize: 8,
		TypeLimits:     map[string]int{},
		QueueCapacity:  1024,
	},
	Store: StoreConfig{
		JournalPath: "./jobdata/journal",
		SyncWrites:  false,
	},
	Shutdown: ShutdownConfig{
		GraceWindow: 30 * time.Second,
	},
	Logging: LoggingConfig{
		Level:  "INFO",
		Format: "text",
		Output: "stdout",
	},
}

// LoadConfig loads configuration from the first config file found in:
//  1. Path specified in JOBSYS_CONFIG_PATH environment variable
//  2. ./config/jobsystem.yml
//  3. ./jobsystem.yml
//  4. /etc/jobsystem/jobsystem.yml
//
// Environment variables override matching fields after the file is
// applied. Returns (config, configPath, error); configPath reports the
// source of configuration for startup logging.
func LoadConfig() (*Config, string, error) {
	config := DefaultConfig

	path, err := loadFromFile(&config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	if val := os.Getenv("JOBSYS_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("JOBSYS_LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("JOBSYS_JOURNAL_PATH"); val != "" {
		config.Store.JournalPath = val
	}

	if err := config.Validate(); err != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, path, nil
}

// loadFromFile loads configuration from the first available YAML file.
// Returns the path of the loaded file, or "built-in defaults" if none
// was found; a missing file is not an error.
func loadFromFile(config *Config) (string, error) {
	configPaths := []string{
		os.Getenv("JOBSYS_CONFIG_PATH"),
		"./config/jobsystem.yml",
		"./jobsystem.yml",
		"/etc/jobsystem/jobsystem.yml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}

		return path, nil
	}

	return "built-in defaults (no config file found)", nil
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Scheduler.WorkerPoolSize < 1 {
		return fmt.Errorf("invalid scheduler worker pool size: %d", c.Scheduler.WorkerPoolSize)
	}

	if c.Scheduler.QueueCapacity < 1 {
		return fmt.Errorf("invalid scheduler queue capacity: %d", c.Scheduler.QueueCapacity)
	}

	for typeName, limit := range c.Scheduler.TypeLimits {
		if limit < 0 {
			return fmt.Errorf("invalid type limit for %q: %d", typeName, limit)
		}
	}

	if c.Store.JournalPath == "" {
		return fmt.Errorf("store journal path must not be empty")
	}

	if c.Shutdown.GraceWindow <= 0 {
		return fmt.Errorf("invalid shutdown grace window: %s", c.Shutdown.GraceWindow)
	}

	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// TypeLimit returns the configured max_concurrent for a job type, and
// whether one was configured at all.
func (c *Config) TypeLimit(typeName string) (int, bool) {
	limit, ok := c.Scheduler.TypeLimits[typeName]
	return limit, ok
}

// JournalDir returns the directory containing the store's journal file.
func (c *Config) JournalDir() string {
	return filepath.Dir(c.Store.JournalPath)
}
