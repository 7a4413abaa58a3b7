// Package config loads the client configuration: terminal location and
// retry policy, named accounts, order defaults, and journal settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete client configuration.
type Config struct {
	Terminal TerminalConfig  `json:"terminal" yaml:"terminal"`
	Accounts []AccountConfig `json:"accounts" yaml:"accounts"`
	Defaults DefaultsConfig  `json:"defaults" yaml:"defaults"`
	Journal  JournalConfig   `json:"journal" yaml:"journal"`
}

// TerminalConfig locates the terminal and tunes the connect retry policy.
type TerminalConfig struct {
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Address    string `json:"address,omitempty" yaml:"address,omitempty"` // bridge socket, host:port or unix path
	Timeout    string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g. "60s"
	Retries    int    `json:"retries,omitempty" yaml:"retries,omitempty"`
	RetryDelay string `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
	Portable   bool   `json:"portable,omitempty" yaml:"portable,omitempty"`
}

// ParseTimeout converts the timeout string, zero when unset.
func (t TerminalConfig) ParseTimeout() (time.Duration, error) {
	if t.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(t.Timeout)
}

// ParseRetryDelay converts the retry delay string, zero when unset.
func (t TerminalConfig) ParseRetryDelay() (time.Duration, error) {
	if t.RetryDelay == "" {
		return 0, nil
	}
	return time.ParseDuration(t.RetryDelay)
}

// AccountConfig names one trading account. Password values of the form
// ${VAR} are expanded from the environment at load time so files never carry
// secrets.
type AccountConfig struct {
	Name     string `json:"name" yaml:"name"`
	Login    int64  `json:"login" yaml:"login"`
	Password string `json:"password" yaml:"password"`
	Server   string `json:"server" yaml:"server"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"` // per-account terminal install
}

// DefaultsConfig carries order defaults applied by the executor.
type DefaultsConfig struct {
	Magic     int64 `json:"magic,omitempty" yaml:"magic,omitempty"`
	Deviation int   `json:"deviation,omitempty" yaml:"deviation,omitempty"`
}

// JournalConfig selects the execution journal backend.
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoadFromFile loads configuration from a file, trying YAML first, then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.expandEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration, YAML for .yaml/.yml, JSON otherwise.
// Passwords are written as-is; keep ${VAR} references in files meant to be
// shared.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) expandEnv() {
	for i := range c.Accounts {
		pw := c.Accounts[i].Password
		if strings.HasPrefix(pw, "${") && strings.HasSuffix(pw, "}") {
			c.Accounts[i].Password = os.Getenv(pw[2 : len(pw)-1])
		}
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if _, err := c.Terminal.ParseTimeout(); err != nil {
		return fmt.Errorf("terminal.timeout: %w", err)
	}
	if _, err := c.Terminal.ParseRetryDelay(); err != nil {
		return fmt.Errorf("terminal.retry_delay: %w", err)
	}
	if c.Terminal.Retries < 0 {
		return fmt.Errorf("terminal.retries must not be negative")
	}

	seen := make(map[string]bool, len(c.Accounts))
	logins := make(map[int64]bool, len(c.Accounts))
	for i, acct := range c.Accounts {
		if acct.Name == "" {
			return fmt.Errorf("accounts[%d].name is required", i)
		}
		if seen[acct.Name] {
			return fmt.Errorf("duplicate account name %q", acct.Name)
		}
		seen[acct.Name] = true
		if acct.Login <= 0 {
			return fmt.Errorf("account %q: login must be positive", acct.Name)
		}
		if logins[acct.Login] {
			return fmt.Errorf("account %q: duplicate login %d", acct.Name, acct.Login)
		}
		logins[acct.Login] = true
		if acct.Server == "" {
			return fmt.Errorf("account %q: server is required", acct.Name)
		}
	}

	if c.Defaults.Deviation < 0 {
		return fmt.Errorf("defaults.deviation must not be negative")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv", "sqlite":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for %s journal", c.Journal.Type)
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// Account looks up a configured account by name.
func (c *Config) Account(name string) (AccountConfig, bool) {
	for _, acct := range c.Accounts {
		if acct.Name == name {
			return acct, true
		}
	}
	return AccountConfig{}, false
}

// Default returns a configuration with sensible defaults and no accounts.
func Default() *Config {
	return &Config{
		Terminal: TerminalConfig{
			Timeout:    "60s",
			Retries:    3,
			RetryDelay: "2s",
		},
		Defaults: DefaultsConfig{
			Deviation: 20,
		},
		Journal: JournalConfig{Type: "none"},
	}
}
