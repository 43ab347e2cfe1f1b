// Package config loads the project's .agentmesh/config.toml. Values decode
// over built-in defaults, then environment overrides apply on top
// (env > TOML > default).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"agentmesh/internal/fstore"
)

// BaseDirName is the per-project state directory holding the registry,
// inboxes, message log, run records, and this config file.
const BaseDirName = ".agentmesh"

// Config is the root of config.toml.
type Config struct {
	Lock    LockConfig    `toml:"lock"`
	Mailbox MailboxConfig `toml:"mailbox"`
	Spawn   SpawnConfig   `toml:"spawn"`
	Agent   AgentConfig   `toml:"agent"`
}

// LockConfig tunes cross-process lock behavior. All values in milliseconds.
type LockConfig struct {
	StaleAfterMs     int `toml:"stale_after_ms"`
	RetryEveryMs     int `toml:"retry_every_ms"`
	AcquireTimeoutMs int `toml:"acquire_timeout_ms"`
}

// MailboxConfig tunes the inbox watcher.
type MailboxConfig struct {
	DebounceMs int `toml:"debounce_ms"`
}

// SpawnConfig tunes child agent runs.
type SpawnConfig struct {
	Binary    string `toml:"binary"`
	Parallel  int    `toml:"parallel"`
	TimeoutMs int    `toml:"timeout_ms"`
	Model     string `toml:"model"`
}

// AgentConfig carries this process's own identity defaults.
type AgentConfig struct {
	Name  string `toml:"name"`
	Model string `toml:"model"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Lock: LockConfig{
			StaleAfterMs:     30_000,
			RetryEveryMs:     25,
			AcquireTimeoutMs: 1_500,
		},
		Mailbox: MailboxConfig{DebounceMs: 50},
		Spawn: SpawnConfig{
			Binary:   "claude",
			Parallel: 4,
		},
	}
}

// BaseDir returns the state directory for a project directory.
func BaseDir(projectDir string) string {
	return filepath.Join(projectDir, BaseDirName)
}

// LoadProject reads <projectDir>/.agentmesh/config.toml. A missing file
// yields the defaults; a malformed one is an error.
func LoadProject(projectDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(BaseDir(projectDir), "config.toml")
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if name := os.Getenv("AGENTMESH_AGENT_NAME"); name != "" {
		cfg.Agent.Name = name
	}
	if model := os.Getenv("AGENTMESH_MODEL"); model != "" {
		cfg.Agent.Model = model
	}
	if binary := os.Getenv("AGENTMESH_SPAWN_BINARY"); binary != "" {
		cfg.Spawn.Binary = binary
	}
	if par := os.Getenv("AGENTMESH_SPAWN_PARALLEL"); par != "" {
		if v, err := strconv.Atoi(par); err == nil && v > 0 {
			cfg.Spawn.Parallel = v
		}
	}
	return cfg, nil
}

// LockOptions converts the lock table into fstore options, falling back to
// the defaults for non-positive values.
func (c *Config) LockOptions() fstore.LockOptions {
	opts := fstore.DefaultLockOptions()
	if c.Lock.StaleAfterMs > 0 {
		opts.StaleAfter = time.Duration(c.Lock.StaleAfterMs) * time.Millisecond
	}
	if c.Lock.RetryEveryMs > 0 {
		opts.RetryEvery = time.Duration(c.Lock.RetryEveryMs) * time.Millisecond
	}
	if c.Lock.AcquireTimeoutMs > 0 {
		opts.AcquireTimeout = time.Duration(c.Lock.AcquireTimeoutMs) * time.Millisecond
	}
	return opts
}

// Debounce returns the mailbox watcher debounce window.
func (c *Config) Debounce() time.Duration {
	if c.Mailbox.DebounceMs <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.Mailbox.DebounceMs) * time.Millisecond
}

// SpawnTimeout returns the per-child run timeout, zero meaning unlimited.
func (c *Config) SpawnTimeout() time.Duration {
	if c.Spawn.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.Spawn.TimeoutMs) * time.Millisecond
}
