// Package config loads the controller daemon's on-disk configuration: data
// directory, bind addresses, Raft peers, read-policy defaults and log level.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/frontier/pkg/log"
)

// Raft holds the optional HA replication settings. A zero value (Enabled
// false) runs the controller single-node, with no raftlog.Node at all.
type Raft struct {
	Enabled  bool     `yaml:"enabled"`
	NodeID   string   `yaml:"node_id"`
	BindAddr string   `yaml:"bind_addr"`
	Peers    []string `yaml:"peers"`
}

// ReadPolicy holds the configured default read policy. It is loaded and
// validated only: controllerd does not pass it to the controller, and every
// collection installed by create_sources starts with ValidFrom(its since).
type ReadPolicy struct {
	// Kind is "valid_from" or "lag_by" (empty is also accepted); Validate
	// rejects any other value.
	Kind string `yaml:"kind"`
	// LagDelta is the lag in encoded timestamp units, used when Kind is "lag_by".
	LagDelta int64 `yaml:"lag_delta"`
}

// Config is the controller daemon's full configuration.
type Config struct {
	DataDir       string     `yaml:"data_dir"`
	BindAddr      string     `yaml:"bind_addr"`
	MetricsAddr   string     `yaml:"metrics_addr"`
	LogLevel      log.Level  `yaml:"log_level"`
	LogJSON       bool       `yaml:"log_json"`
	Raft          Raft       `yaml:"raft"`
	DefaultPolicy ReadPolicy `yaml:"default_read_policy"`
}

// Default returns the configuration a fresh single-node controller starts
// with when no config file is given.
func Default() Config {
	return Config{
		DataDir:     "./controller-data",
		BindAddr:    "127.0.0.1:7070",
		MetricsAddr: "127.0.0.1:9090",
		LogLevel:    log.InfoLevel,
		LogJSON:     false,
		Raft: Raft{
			Enabled:  false,
			NodeID:   "node-1",
			BindAddr: "127.0.0.1:7946",
		},
		DefaultPolicy: ReadPolicy{Kind: "valid_from"},
	}
}

// Load reads and parses the YAML config file at path, starting from Default
// and overriding only the fields the file sets.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration that cannot start a controller.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.BindAddr == "" {
		return fmt.Errorf("config: bind_addr must not be empty")
	}
	if c.Raft.Enabled {
		if c.Raft.NodeID == "" {
			return fmt.Errorf("config: raft.node_id must not be empty when raft.enabled is true")
		}
		if c.Raft.BindAddr == "" {
			return fmt.Errorf("config: raft.bind_addr must not be empty when raft.enabled is true")
		}
	}
	switch c.DefaultPolicy.Kind {
	case "", "valid_from", "lag_by":
	default:
		return fmt.Errorf("config: default_read_policy.kind must be \"valid_from\" or \"lag_by\", got %q", c.DefaultPolicy.Kind)
	}
	return nil
}
