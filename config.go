package actors

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds system-wide tunables. Zero values fall back to the
// defaults from DefaultConfig.
type Config struct {
	Name string `yaml:"name"`

	Dispatcher DispatcherSettings `yaml:"dispatcher"`
	Mailbox    MailboxSettings    `yaml:"mailbox"`
	DeadLetter DeadLetterSettings `yaml:"dead_letter"`

	// StopTimeout bounds how long a parent waits for each child while
	// stopping; ShutdownTimeout bounds the whole system termination.
	StopTimeout     time.Duration `yaml:"stop_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// JournalPath, when set, enables the SQLite journal for lifecycle
	// events and dead letters.
	JournalPath string `yaml:"journal_path"`

	LogLevel string `yaml:"log_level"`
}

type DispatcherSettings struct {
	PoolSize   int `yaml:"pool_size"`
	QueueSize  int `yaml:"queue_size"`
	Throughput int `yaml:"throughput"`
}

type MailboxSettings struct {
	Capacity int `yaml:"capacity"`
}

type DeadLetterSettings struct {
	Capacity      int     `yaml:"capacity"`
	LogsPerSecond float64 `yaml:"logs_per_second"`
}

// DefaultConfig returns the settings a fresh system runs with.
func DefaultConfig() Config {
	return Config{
		Name: "actors",
		Dispatcher: DispatcherSettings{
			PoolSize:   0, // 0 means 2 x GOMAXPROCS
			QueueSize:  1024,
			Throughput: DefaultThroughput,
		},
		Mailbox: MailboxSettings{
			Capacity: 0, // unbounded
		},
		DeadLetter: DeadLetterSettings{
			Capacity:      1000,
			LogsPerSecond: 1,
		},
		StopTimeout:     5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot honor.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: name must not be empty")
	}
	if c.Dispatcher.PoolSize < 0 {
		return fmt.Errorf("config: dispatcher pool_size must not be negative")
	}
	if c.Dispatcher.Throughput < 0 {
		return fmt.Errorf("config: dispatcher throughput must not be negative")
	}
	if c.Mailbox.Capacity < 0 {
		return fmt.Errorf("config: mailbox capacity must not be negative")
	}
	if c.StopTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	return nil
}
