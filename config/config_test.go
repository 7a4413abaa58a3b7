package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
terminal:
  path: /opt/terminal/terminal64.exe
  timeout: 30s
  retries: 5
  retry_delay: 500ms
accounts:
  - name: demo
    login: 11111
    password: secret
    server: Broker-Demo
  - name: live
    login: 22222
    password: other
    server: Broker-Live
defaults:
  magic: 42
  deviation: 10
journal:
  type: sqlite
  path: ./executions.db
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/terminal/terminal64.exe", cfg.Terminal.Path)
	assert.Equal(t, 5, cfg.Terminal.Retries)

	timeout, err := cfg.Terminal.ParseTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)

	delay, err := cfg.Terminal.ParseRetryDelay()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, delay)

	require.Len(t, cfg.Accounts, 2)
	acct, ok := cfg.Account("demo")
	require.True(t, ok)
	assert.Equal(t, int64(11111), acct.Login)

	_, ok = cfg.Account("missing")
	assert.False(t, ok)

	assert.Equal(t, int64(42), cfg.Defaults.Magic)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
}

func TestLoadJSONFallback(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "terminal": {"timeout": "10s"},
  "accounts": [{"name": "demo", "login": 11111, "password": "x", "server": "S"}],
  "journal": {"type": "none"}
}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10s", cfg.Terminal.Timeout)
	require.Len(t, cfg.Accounts, 1)
}

func TestPasswordEnvExpansion(t *testing.T) {
	t.Setenv("GOMT5_TEST_PW", "expanded-secret")
	path := writeFile(t, "config.yaml", `
accounts:
  - name: demo
    login: 11111
    password: ${GOMT5_TEST_PW}
    server: Broker-Demo
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.Accounts[0].Password)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retries", func(c *Config) { c.Terminal.Retries = -1 }},
		{"bad timeout", func(c *Config) { c.Terminal.Timeout = "soon" }},
		{"unnamed account", func(c *Config) {
			c.Accounts = append(c.Accounts, AccountConfig{Login: 1, Server: "S"})
		}},
		{"duplicate name", func(c *Config) {
			c.Accounts = append(c.Accounts,
				AccountConfig{Name: "a", Login: 1, Server: "S"},
				AccountConfig{Name: "a", Login: 2, Server: "S"})
		}},
		{"duplicate login", func(c *Config) {
			c.Accounts = append(c.Accounts,
				AccountConfig{Name: "a", Login: 1, Server: "S"},
				AccountConfig{Name: "b", Login: 1, Server: "S"})
		}},
		{"missing server", func(c *Config) {
			c.Accounts = append(c.Accounts, AccountConfig{Name: "a", Login: 1})
		}},
		{"negative deviation", func(c *Config) { c.Defaults.Deviation = -1 }},
		{"unknown journal type", func(c *Config) { c.Journal.Type = "parquet" }},
		{"journal without path", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []AccountConfig{{Name: "demo", Login: 11111, Password: "pw", Server: "S"}}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Accounts, loaded.Accounts)
	assert.Equal(t, cfg.Terminal, loaded.Terminal)
}
