package viper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
transport:
  listen: 127.0.0.1:7000
  dial_timeout: 2s
registry:
  endpoints: [a:2379, b:2379]
`)
	cfg := New("")
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "127.0.0.1:7000", cfg.GetString("transport.listen"))
	assert.Equal(t, 2*time.Second, cfg.GetDuration("transport.dial_timeout"))
	assert.Equal(t, []string{"a:2379", "b:2379"}, cfg.GetStringSlice("registry.endpoints"))

	var sub struct {
		Listen string `mapstructure:"listen"`
	}
	require.NoError(t, cfg.UnmarshalKey("transport", &sub))
	assert.Equal(t, "127.0.0.1:7000", sub.Listen)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"codec": {"max_frame_size": 1024}}`)
	cfg := New("")
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, 1024, cfg.GetInt("codec.max_frame_size"))
}

func TestDefaultsAndEnv(t *testing.T) {
	t.Setenv("XTROS_TEST_CODEC_COMPRESSION", "zstd")

	cfg := New("XTROS_TEST")
	cfg.SetDefault("codec.compression", "none")
	cfg.SetDefault("transport.workers", 4)

	assert.Equal(t, "zstd", cfg.GetString("codec.compression"))
	assert.Equal(t, 4, cfg.GetInt("transport.workers"))
	assert.True(t, cfg.IsSet("transport.workers"))
	assert.False(t, cfg.IsSet("metrics.listen"))
}

func TestLoadMissing(t *testing.T) {
	cfg := New("")
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "none.yaml")))
}
