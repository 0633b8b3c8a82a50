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

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	// ws_port follows http_port unless set
	assert.Equal(t, 9090, cfg.Server.WSPort)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "utf8mb4", cfg.MySQL.Charset)
	assert.Equal(t, "agora:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 60, cfg.JWT.TicketTTLSeconds)
	assert.Equal(t, int64(4096), cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.WriteWait)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, 27*time.Second, cfg.WebSocket.PingPeriod)
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
websocket:
  write_wait: 5s
  pong_wait: 90s
  ping_period: 80s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.WebSocket.WriteWait)
	assert.Equal(t, 90*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, 80*time.Second, cfg.WebSocket.PingPeriod)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	cfg := MySQLConfig{
		Host: "db.local", Port: 3307,
		User: "agora", Password: "pw",
		Database: "agora", Charset: "utf8mb4",
	}
	assert.Equal(t,
		"agora:pw@tcp(db.local:3307)/agora?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DSN())
}
