// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package engineconfig loads the engine's homespun.hjson bootstrap
// configuration: CLI discovery overrides, transcript/metadata paths,
// default session settings, and the remote worker's container options.
package engineconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hjson/hjson-go/v4"
)

// Container is the remote worker's container configuration, per spec.md
// §6's container options list.
type Container struct {
	WorkerImage      string `json:"worker_image,omitempty"`
	DataVolumePath   string `json:"data_volume_path,omitempty"`
	HostDataPath     string `json:"host_data_path,omitempty"`
	MemoryLimitBytes int64  `json:"memory_limit_bytes,omitempty"`
	CPULimit         string `json:"cpu_limit,omitempty"`
	RequestTimeout   string `json:"request_timeout,omitempty"`
	DockerSocketPath string `json:"docker_socket_path,omitempty"`
	NetworkName      string `json:"network_name,omitempty"`
}

// Config is the engine's top-level configuration.
type Config struct {
	CliPath        string    `json:"cli_path,omitempty"`
	TranscriptRoot string    `json:"transcript_root,omitempty"`
	MetadataPath   string    `json:"metadata_path,omitempty"`
	DefaultModel   string    `json:"default_model,omitempty"`
	SessionTimeout string    `json:"session_timeout,omitempty"`
	Container      Container `json:"container,omitempty"`
}

// SessionTimeoutDuration parses SessionTimeout, falling back to 30
// minutes (the engine's default request timeout) when unset or
// unparsable.
func (c *Config) SessionTimeoutDuration() time.Duration {
	if c.SessionTimeout == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(c.SessionTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// Loader loads and applies defaults to homespun.hjson, exactly the
// HJSON-through-JSON round trip the rest of the corpus uses for its own
// config file.
type Loader struct{}

// NewLoader creates a Loader.
func NewLoader() *Loader { return &Loader{} }

// Load reads and parses the configuration at path.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads the config at path and fills in defaults for
// every unset field.
func (l *Loader) LoadWithDefaults(path string) (*Config, error) {
	cfg, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// FindConfig searches the current directory for homespun.hjson, falling
// back to homespun.json.
func (l *Loader) FindConfig() (string, error) {
	for _, name := range []string{"homespun.hjson", "homespun.json"} {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs, nil
			}
			return path, nil
		}
	}
	return "", fmt.Errorf("config file not found (looked for homespun.hjson, homespun.json)")
}

func applyDefaults(cfg *Config) {
	if cfg.TranscriptRoot == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.TranscriptRoot = filepath.Join(home, ".claude")
		}
	}
	if cfg.MetadataPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.MetadataPath = filepath.Join(home, ".config", "homespun", "sessions.json")
		}
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-5"
	}
	if cfg.SessionTimeout == "" {
		cfg.SessionTimeout = "30m"
	}

	if cfg.Container.DockerSocketPath == "" {
		cfg.Container.DockerSocketPath = "/var/run/docker.sock"
	}
	if cfg.Container.RequestTimeout == "" {
		cfg.Container.RequestTimeout = "30m"
	}
	if cfg.Container.NetworkName == "" {
		cfg.Container.NetworkName = "homespun"
	}
}
