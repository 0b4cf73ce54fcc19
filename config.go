package parallel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PoolSettings sizes the shared worker pool.
type PoolSettings struct {
	NumThreads int `yaml:"num_threads"`
	StackSize  int `yaml:"stack_size"`
}

// Config is the runtime configuration tree loaded from defaults, a YAML
// file, and environment overrides.
type Config struct {
	LogLevel            string       `yaml:"log_level"`
	MaxConcurrentTasks  int          `yaml:"max_concurrent_tasks"`
	MemoryLimitPercent  float64      `yaml:"memory_limit_percent"`
	Pool                PoolSettings `yaml:"pool"`
	StartPriorityWorker bool         `yaml:"start_priority_worker"`
}

// DefaultConfig returns the runtime defaults: no caps, no memory gate, an
// unconfigured pool, no priority consumer.
func DefaultConfig() Config {
	return Config{}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// FromEnv applies environment overrides; currently the log level only.
func (c Config) FromEnv() Config {
	if v := os.Getenv(LogLevelEnv); v != "" {
		c.LogLevel = v
	}
	return c
}

// Apply pushes the configuration into the runtime.
func (c Config) Apply() error {
	if c.LogLevel != "" {
		applyLogLevel(c.LogLevel)
	}
	if c.MaxConcurrentTasks > 0 {
		if err := SetMaxConcurrentTasks(c.MaxConcurrentTasks); err != nil {
			return err
		}
	}
	if c.MemoryLimitPercent > 0 {
		if err := ConfigureMemoryLimit(c.MemoryLimitPercent); err != nil {
			return err
		}
	}
	if c.Pool.NumThreads > 0 {
		if err := ConfigureThreadPool(c.Pool.NumThreads, c.Pool.StackSize); err != nil {
			return err
		}
	}
	if c.StartPriorityWorker {
		StartPriorityWorker()
	}
	return nil
}
