/*
PURPOSE:
  Defines the configuration structure and loading logic for the OT-2 Runner.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of robot host, port, timeouts, poll interval, and mount.
  - OT2_HOST environment variable supplies a default host.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Components must never read ambient process state; env resolution happens
    here, once, at load time.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/discover, internal/api, internal/runner
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing config file falls back to defaults.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should match the robot-server conventions (port 31950, version 2).

USAGE:
  cfg, err := config.Load("ot2_runner.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update Load() defaults.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HostEnvKey names the environment variable that supplies a default robot
// host when no explicit --host flag is given.
const HostEnvKey = "OT2_HOST"

// ConfigError reports bad or missing caller input (flags, arguments,
// config file values). Always fatal; never retried.
type ConfigError struct {
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Detail
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config represents the full configuration for the OT-2 Runner.
type Config struct {
	// Host is the explicit robot host (empty means auto-discover).
	Host string `yaml:"host"`
	// Port is the robot-server port.
	Port int `yaml:"port"`
	// APIVersion is the Opentrons-Version header value.
	APIVersion string `yaml:"api_version"`
	// RunTimeout bounds the whole poll loop for one protocol run.
	RunTimeout time.Duration `yaml:"run_timeout"`
	// PollInterval is the sleep between run status polls.
	PollInterval time.Duration `yaml:"poll_interval"`
	// ProbeTimeout bounds one /health probe during discovery.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// HTTPTimeout bounds one-shot API calls (upload, actions, commands).
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// OutputDir is where pull-calibrations writes snapshots.
	OutputDir string `yaml:"output_dir"`
	// Mount selects pipette mounts for the smoke test: left, right, or both.
	Mount string `yaml:"mount"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         os.Getenv(HostEnvKey),
		Port:         31950,
		APIVersion:   "2",
		RunTimeout:   600 * time.Second,
		PollInterval: 2 * time.Second,
		ProbeTimeout: 2 * time.Second,
		HTTPTimeout:  20 * time.Second,
		OutputDir:    "offsets/pulled",
		Mount:        "both",
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"ot2_runner.yaml", "runner.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// A file with host unset must not wipe the env default.
	if cfg.Host == "" {
		cfg.Host = os.Getenv(HostEnvKey)
	}

	return cfg, nil
}
