// Package config handles focusmode configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/focusmode/internal/policy"
)

// FileName is the configuration file name inside the data directory.
const FileName = "config.yaml"

// Config represents the main configuration structure.
type Config struct {
	Version    int        `yaml:"version"`
	Enforcer   Enforcer   `yaml:"enforcer"`
	Monitor    Monitor    `yaml:"monitor"`
	Network    Network    `yaml:"network"`
	Teardown   Teardown   `yaml:"teardown"`
	Supervisor Supervisor `yaml:"supervisor"`
	Essential  Essential  `yaml:"essential"`
}

// Enforcer configures the allow-list enforcement loop.
type Enforcer struct {
	Interval time.Duration `yaml:"interval"`
}

// Monitor configures the activity monitor loop.
type Monitor struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Browsers []string      `yaml:"browsers"`
}

// Network configures hostname blocking.
type Network struct {
	Enabled          bool          `yaml:"enabled"`
	HostsFile        string        `yaml:"hosts_file"`
	PrivilegeTimeout time.Duration `yaml:"privilege_timeout"`
}

// Teardown configures deactivation bounds.
type Teardown struct {
	GracePeriod time.Duration `yaml:"grace_period"`
	StepTimeout time.Duration `yaml:"step_timeout"`
}

// Supervisor configures the supervisor daemon.
type Supervisor struct {
	GuardInterval     time.Duration `yaml:"guard_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ExtraPatterns     []string      `yaml:"extra_patterns,omitempty"`
}

// Essential lists process names added to the built-in essential set.
type Essential struct {
	Extra []string `yaml:"extra,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Enforcer: Enforcer{
			Interval: policy.DefaultTickInterval,
		},
		Monitor: Monitor{
			Enabled:  true,
			Interval: policy.DefaultMonitorInterval,
			Browsers: []string{"Safari", "Google Chrome"},
		},
		Network: Network{
			Enabled:          true,
			HostsFile:        "/etc/hosts",
			PrivilegeTimeout: 5 * time.Second,
		},
		Teardown: Teardown{
			GracePeriod: 2 * time.Second,
			StepTimeout: 5 * time.Second,
		},
		Supervisor: Supervisor{
			GuardInterval:     10 * time.Second,
			HeartbeatInterval: 30 * time.Second,
		},
	}
}

// Load reads configuration from path. A missing file yields defaults.
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to path.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version < 1 {
		return fmt.Errorf("invalid config version")
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"enforcer.interval", c.Enforcer.Interval},
		{"monitor.interval", c.Monitor.Interval},
		{"network.privilege_timeout", c.Network.PrivilegeTimeout},
		{"teardown.grace_period", c.Teardown.GracePeriod},
		{"teardown.step_timeout", c.Teardown.StepTimeout},
		{"supervisor.guard_interval", c.Supervisor.GuardInterval},
		{"supervisor.heartbeat_interval", c.Supervisor.HeartbeatInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if c.Network.Enabled && c.Network.HostsFile == "" {
		return fmt.Errorf("network.hosts_file is required when network blocking is enabled")
	}
	return nil
}
