package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soypat/sensor-mqtt/internal/publisher"
)

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, publisher.DefaultConfig(), cfg)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("SENSORPUB_BROKER", "10.0.0.2:1883")
	t.Setenv("SENSORPUB_CLIENT_ID", "clientId-8rhWgBODCl")
	t.Setenv("SENSORPUB_INTERVAL", "500ms")
	t.Setenv("SENSORPUB_BUFFER_SIZE", "128")
	v := viper.New()
	setDefaults(v)
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:1883", cfg.Broker)
	assert.Equal(t, "clientId-8rhWgBODCl", cfg.ClientID)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
	assert.Equal(t, 128, cfg.BufferSize)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorpub.yaml")
	err := os.WriteFile(path, []byte("topic: garden/soil\ntimeout: 2s\nmax_backoff: 1m\n"), 0o600)
	require.NoError(t, err)
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	require.NoError(t, v.ReadInConfig())
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "garden/soil", cfg.Topic)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, time.Minute, cfg.MaxBackoff)
}

func TestLoadConfigInvalid(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("topic", "")
	_, err := loadConfig(v)
	assert.Error(t, err)
}
