package actors

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "actors.yaml")
	data := `
name: custom
dispatcher:
  pool_size: 8
  throughput: 10
mailbox:
  capacity: 500
dead_letter:
  capacity: 50
  logs_per_second: 2
stop_timeout: 3s
shutdown_timeout: 10s
log_level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "custom" {
		t.Errorf("Name = %s", cfg.Name)
	}
	if cfg.Dispatcher.PoolSize != 8 || cfg.Dispatcher.Throughput != 10 {
		t.Errorf("Dispatcher = %+v", cfg.Dispatcher)
	}
	if cfg.Mailbox.Capacity != 500 {
		t.Errorf("Mailbox.Capacity = %d", cfg.Mailbox.Capacity)
	}
	if cfg.StopTimeout != 3*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.StopTimeout, cfg.ShutdownTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.Dispatcher.QueueSize != DefaultConfig().Dispatcher.QueueSize {
		t.Errorf("QueueSize = %d, want default", cfg.Dispatcher.QueueSize)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadConfig on a missing file returned nil error")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"negative pool", func(c *Config) { c.Dispatcher.PoolSize = -1 }},
		{"negative throughput", func(c *Config) { c.Dispatcher.Throughput = -1 }},
		{"negative capacity", func(c *Config) { c.Mailbox.Capacity = -1 }},
		{"negative timeout", func(c *Config) { c.StopTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted an invalid config")
			}
		})
	}
}

func TestConfigWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "actors.yaml")
	if err := os.WriteFile(path, []byte("name: before\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewConfigWatcher(path, testLogger())
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Name; got != "before" {
		t.Fatalf("initial Name = %s", got)
	}

	changed := make(chan Config, 1)
	w.OnChange(func(_, new Config) {
		select {
		case changed <- new:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("name: after\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.Name != "after" {
			t.Errorf("reloaded Name = %s", cfg.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change never observed")
	}
	if got := w.Current().Name; got != "after" {
		t.Errorf("Current().Name = %s after reload", got)
	}
}

func TestConfigWatcherManualReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "actors.yaml")
	if err := os.WriteFile(path, []byte("name: one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewConfigWatcher(path, testLogger())
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}

	if err := os.WriteFile(path, []byte("name: two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := w.Current().Name; got != "two" {
		t.Errorf("Current().Name = %s after manual reload", got)
	}
}
