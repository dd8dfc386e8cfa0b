package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  bind_addr: \":8080\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.BindAddr)
	assert.Equal(t, "/metrics", cfg.Server.TelemetryPath)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 20*time.Second, cfg.GetPingInterval())
	assert.Equal(t, 20*time.Second, cfg.GetPongTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetWriteTimeout())
	assert.Equal(t, 256, cfg.Server.SendBufferSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "rooms.db", cfg.Room.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.GetRoomDefaultTTL())
	assert.Equal(t, "adb", cfg.ADB.Path)
	assert.Equal(t, 30*time.Second, cfg.GetADBTimeout())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
server:
  bind_addr: ":9000"
  telemetry_path: "/telemetry"
  allowed_origins:
    - "https://app.example.com"
  ping_interval: 5
  pong_timeout: 15
  write_timeout: 3
  send_buffer_size: 64
log:
  level: debug
room:
  db_path: /var/lib/relay/rooms.db
  default_ttl_hours: 48
adb:
  path: /opt/platform-tools/adb
  timeout_seconds: 10
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.BindAddr)
	assert.Equal(t, "/telemetry", cfg.Server.TelemetryPath)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.GetPingInterval())
	assert.Equal(t, 15*time.Second, cfg.GetPongTimeout())
	assert.Equal(t, 3*time.Second, cfg.GetWriteTimeout())
	assert.Equal(t, 64, cfg.Server.SendBufferSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/relay/rooms.db", cfg.Room.DBPath)
	assert.Equal(t, 48*time.Hour, cfg.GetRoomDefaultTTL())
	assert.Equal(t, "/opt/platform-tools/adb", cfg.ADB.Path)
	assert.Equal(t, 10*time.Second, cfg.GetADBTimeout())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_BIND_ADDR", ":7070")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("WS_PING_INTERVAL", "7")
	t.Setenv("WS_PONG_TIMEOUT", "9")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ROOM_DB_PATH", "/tmp/override.db")
	t.Setenv("ADB_TIMEOUT_SECONDS", "5")

	var cfg Config
	cfg.SetDefaults()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, ":7070", cfg.Server.BindAddr)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 7*time.Second, cfg.GetPingInterval())
	assert.Equal(t, 9*time.Second, cfg.GetPongTimeout())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/override.db", cfg.Room.DBPath)
	assert.Equal(t, 5*time.Second, cfg.GetADBTimeout())
}

func TestLegacyPingTimeoutEnv(t *testing.T) {
	t.Setenv("WS_PING_TIMEOUT", "12")

	var cfg Config
	cfg.SetDefaults()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 12*time.Second, cfg.GetPongTimeout())

	// The current name wins when both are set
	t.Setenv("WS_PONG_TIMEOUT", "8")
	cfg = Config{}
	cfg.SetDefaults()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 8*time.Second, cfg.GetPongTimeout())
}

func TestEnvOverrideIgnoresBadNumbers(t *testing.T) {
	t.Setenv("WS_PING_INTERVAL", "soon")

	var cfg Config
	cfg.SetDefaults()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 20*time.Second, cfg.GetPingInterval())
}
