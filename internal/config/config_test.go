package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr())
	assert.Equal(t, 25*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, 256, cfg.WebSocket.SendBuffer)
	assert.Equal(t, "memory", cfg.Registry.Driver)
	assert.Equal(t, ConflictOverwrite, cfg.Registry.ConflictPolicy)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Cluster.Enabled)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	content := `
auth:
  jwt_secret: from-file
  issuer: hybrid
registry:
  driver: redis
  conflict_policy: reject
  redis:
    key_ttl: 90s
websocket:
  ping_interval: 5s
  pong_wait: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "hybrid", cfg.Auth.Issuer)
	assert.Equal(t, "redis", cfg.Registry.Driver)
	assert.Equal(t, ConflictReject, cfg.Registry.ConflictPolicy)
	assert.Equal(t, 90*time.Second, cfg.Registry.Redis.KeyTTL)
	assert.Equal(t, 5*time.Second, cfg.WebSocket.PingInterval)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth:      AuthConfig{JWTSecret: "x"},
			WebSocket: WebSocketConfig{PingInterval: time.Second, PongWait: 2 * time.Second},
			Registry:  RegistryConfig{Driver: "memory", ConflictPolicy: ConflictOverwrite},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"ping not shorter than pong", func(c *Config) { c.WebSocket.PingInterval = 2 * time.Second }},
		{"unknown registry", func(c *Config) { c.Registry.Driver = "etcd" }},
		{"unknown policy", func(c *Config) { c.Registry.ConflictPolicy = "merge" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
