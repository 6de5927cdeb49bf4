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
	path := filepath.Join(t.TempDir(), "streammux.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `output: combined.log
tty: true
stats_interval: 2s
buffer_size: 1024
listen: "127.0.0.1:9000"
`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "combined.log", config.Output)
	assert.True(t, config.TTY)
	assert.Equal(t, 2*time.Second, config.StatsInterval)
	assert.Equal(t, 1024, config.BufferSize)
	assert.Equal(t, "127.0.0.1:9000", config.Listen)
}

func TestLoad_MissingKeysKeepDefaults(t *testing.T) {
	path := writeConfig(t, "tty: true\n")

	config, err := Load(path)
	require.NoError(t, err)
	assert.True(t, config.TTY)
	assert.Equal(t, DefaultListen, config.Listen)
	assert.Zero(t, config.StatsInterval)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/streammux.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "tty: [unclosed\n")

	config, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"negative buffer", "buffer_size: -1\n", "buffer_size must be >= 0"},
		{"negative interval", "stats_interval: -1s\n", "stats_interval must be >= 0"},
		{"tiny interval", "stats_interval: 1ms\n", "at least 100ms"},
		{"bad listen", "listen: nonsense\n", "invalid listen address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Nil(t, config)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		config, err := Resolve("")
		require.NoError(t, err)
		assert.Equal(t, Default(), config)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(EnvConfig, writeConfig(t, "output: from-env.log\n"))
		config, err := Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "from-env.log", config.Output)
	})

	t.Run("explicit path wins", func(t *testing.T) {
		t.Setenv(EnvConfig, writeConfig(t, "output: from-env.log\n"))
		config, err := Resolve(writeConfig(t, "output: explicit.log\n"))
		require.NoError(t, err)
		assert.Equal(t, "explicit.log", config.Output)
	})
}
