// Package config loads the YAML description of a wheel bus: the slave directory, the session timing
// and the optional status export endpoint.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Session SessionConfig `yaml:"session"`
	Slaves  []SlaveConfig `yaml:"slaves"`
	Status  *StatusConfig `yaml:"status"`
}

// ---- SESSION TIMING ----

// SessionConfig holds the session timing. Zero values keep the session defaults.
type SessionConfig struct {
	CycleMs            int `yaml:"cycle_ms"`
	ReceiveTimeoutMs   int `yaml:"receive_timeout_ms"`
	MonitorIntervalMs  int `yaml:"monitor_interval_ms"`
	StateTimeoutMs     int `yaml:"state_timeout_ms"`
	StatePollMs        int `yaml:"state_poll_ms"`
	OperationalRetries int `yaml:"operational_retries"`
	OperationalPollMs  int `yaml:"operational_poll_ms"`
	RecoveryTimeoutMs  int `yaml:"recovery_timeout_ms"`
	ShutdownTimeoutMs  int `yaml:"shutdown_timeout_ms"`
}

// ---- SLAVE DIRECTORY ----

type SlaveConfig struct {
	Position    int    `yaml:"position"`
	Kind        string `yaml:"kind"`
	Name        string `yaml:"name"`
	MinRevision uint32 `yaml:"min_revision"`
	// Setup names a setup hook, e.g. "wheel-pdo".
	Setup string `yaml:"setup"`
}

// ---- STATUS EXPORT (OPTIONAL) ----

type StatusConfig struct {
	Endpoint    string `yaml:"endpoint"`
	UnitID      uint8  `yaml:"unit_id"`
	BaseAddress uint16 `yaml:"base_address"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	IntervalMs  int    `yaml:"interval_ms"`
	// Name is written into the status block, ASCII only.
	Name string `yaml:"name"`
}

// Load reads the YAML document at path. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a YAML document from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	return cfg, nil
}
