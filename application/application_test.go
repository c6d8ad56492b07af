package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(envConfigPath, "")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Codec.Compression)
	assert.Equal(t, 16<<20, cfg.Codec.MaxFrameSize)
	assert.Equal(t, 3*time.Second, cfg.Transport.DialTimeout)
	assert.Equal(t, 256, cfg.Transport.SendQueue)
	assert.Equal(t, "/xtensor_ros/topics", cfg.Registry.Prefix)
	assert.Empty(t, cfg.Registry.Endpoints)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xtros.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
codec:
  compression: zstd
  encryption_key: secret
transport:
  listen: 0.0.0.0:9000
  websocket_path: /topics
  workers: 8
registry:
  endpoints: ["127.0.0.1:2379"]
  ttl: 5s
`), 0o600))

	cfg, raw, rest, err := load([]string{"pub", "--config", path, "-topic", "points"})
	require.NoError(t, err)
	assert.NotNil(t, raw)
	assert.Equal(t, []string{"pub", "-topic", "points"}, rest)
	assert.Equal(t, "zstd", cfg.Codec.Compression)
	assert.Equal(t, "secret", cfg.Codec.EncryptionKey)
	assert.Equal(t, 1024, cfg.Codec.MinCompressSize)
	assert.Equal(t, "0.0.0.0:9000", cfg.Transport.Listen)
	assert.Equal(t, "/topics", cfg.Transport.WebSocketPath)
	assert.Equal(t, 8, cfg.Transport.Workers)
	assert.Equal(t, []string{"127.0.0.1:2379"}, cfg.Registry.Endpoints)
	assert.Equal(t, 5*time.Second, cfg.Registry.TTL)

	cfg, err = Load([]string{"--config=" + path})
	require.NoError(t, err)
	assert.Equal(t, "zstd", cfg.Codec.Compression)
}

func TestLoadEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  listen: 127.0.0.1:9100\n"), 0o600))
	t.Setenv(envConfigPath, path)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Listen)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(envConfigPath, "")
	_, err := Load([]string{"--config"})
	assert.Error(t, err)

	_, err = Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestRunModuleLoggers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: warn
  stdout: false
logging:
  topic:
    level: debug
`), 0o600))

	app := New()
	rest, err := app.Run([]string{"--config", path, "types"})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, []string{"types"}, rest)
	assert.Equal(t, "warn", app.Config().Log.Level)
	assert.NotNil(t, app.Logger("topic"))
	assert.NotNil(t, app.Logger("unknown"))
}
