package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)
	check.Equal(t, "8080", config.Server.Port)
	check.Equal(t, "base_price", config.Session.UndoReset)
	check.Equal(t, 5*time.Second, config.Session.PublishTimeout)
	check.False(t, config.NATS.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
database:
  max_open_conns: 20
session:
  publish_timeout: 2s
  undo_reset: zero
nats:
  enabled: true
entitlements:
  premium: [alice, bob]
`)
	config, err := loadConfig(path)
	assert.NoError(t, err)
	check.Equal(t, "9090", config.Server.Port)
	check.Equal(t, 20, config.Database.MaxOpenConns)
	check.Equal(t, 5, config.Database.MaxIdleConns)
	check.Equal(t, 2*time.Second, config.Session.PublishTimeout)
	check.Equal(t, "zero", config.Session.UndoReset)
	check.Equal(t, 256, config.Session.MailboxSize)
	check.True(t, config.NATS.Enabled)
	check.Equal(t, []string{"alice", "bob"}, config.Entitlements.Premium)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("PREMIUM_USERS", "carol")

	config, err := loadConfig(writeConfig(t, "server:\n  port: \"9090\"\n"))
	assert.NoError(t, err)
	check.Equal(t, "7070", config.Server.Port)
	check.True(t, config.NATS.Enabled)
	check.Equal(t, []string{"carol"}, config.Entitlements.Premium)
}

func TestLoadConfigRejectsUnknownUndoReset(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "session:\n  undo_reset: previous\n"))
	check.Error(t, err)
}
