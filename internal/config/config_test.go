package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/crop_advisor/internal/feed"
)

// clearEnv blanks every key Load reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CROP_CONFIG_FILE", "FEED_SOURCE", "FEED_ENCODING", "FEED_TOPIC_PREFIX",
		"RABBITMQ_HOST", "RABBITMQ_PORT", "RABBITMQ_USER", "RABBITMQ_PASSWORD", "MQTT_CLIENT_ID",
		"RTDB_URL", "RTDB_AUTH", "RTDB_BREAKER_FAILURES", "RTDB_BREAKER_OPEN",
		"INFLUX_URL", "INFLUX_TOKEN", "INFLUX_ORG", "INFLUX_BUCKET", "INFLUX_POLL_INTERVAL", "INFLUX_LOOKBACK",
		"PORT", "GRPC_PORT", "DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, SourceMQTT, cfg.Source)
	assert.Equal(t, "5009", cfg.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("FEED_SOURCE", "RTDB")
	t.Setenv("RTDB_URL", "https://farm-default-rtdb.example.com")
	t.Setenv("RTDB_BREAKER_OPEN", "1m")
	t.Setenv("RTDB_BREAKER_FAILURES", "many")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceRTDB, cfg.Source)
	assert.Equal(t, time.Minute, cfg.RTDB.BreakerOpen)
	assert.Equal(t, 5, cfg.RTDB.BreakerFailures, "unparsable values keep the default")
	assert.True(t, cfg.Debug)

	sc := cfg.Stream()
	assert.Equal(t, "https://farm-default-rtdb.example.com", sc.BaseURL)
	assert.Equal(t, time.Minute, sc.BreakerOpenFor)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "crop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: influx
encoding: msgpack
influx:
  url: http://influx:8086
  bucket: field
  poll_interval: 10s
mqtt:
  topic_prefix: farm
`), 0o600))
	t.Setenv("CROP_CONFIG_FILE", path)
	t.Setenv("INFLUX_BUCKET", "override")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceInflux, cfg.Source)
	assert.Equal(t, "msgpack", cfg.Encoding)
	assert.Equal(t, "http://influx:8086", cfg.Influx.URL)
	assert.Equal(t, "override", cfg.Influx.Bucket)
	assert.Equal(t, 10*time.Second, cfg.Influx.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.Influx.Lookback)
	assert.Equal(t, "farm", cfg.MQTT.TopicPrefix)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9000\n"), 0o600))
	// godotenv does not override variables that are already set, even to ""
	require.NoError(t, os.Unsetenv("PORT"))
	t.Cleanup(func() { _ = os.Unsetenv("PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("CROP_CONFIG_FILE", "does-not-exist.yaml")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"defaults", func(*Config) {}, nil},
		{"unknown source", func(c *Config) { c.Source = "kafka" }, ErrInvalidSource},
		{"unknown encoding", func(c *Config) { c.Encoding = "xml" }, ErrInvalidEncoding},
		{"mqtt without host", func(c *Config) { c.MQTT.Host = "" }, ErrMissingEndpoint},
		{"rtdb without url", func(c *Config) { c.Source = SourceRTDB }, ErrMissingEndpoint},
		{"rtdb with url", func(c *Config) { c.Source = SourceRTDB; c.RTDB.URL = "https://x.example.com" }, nil},
		{"influx without bucket", func(c *Config) { c.Source = SourceInflux; c.Influx.Bucket = "" }, ErrMissingEndpoint},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewSource(t *testing.T) {
	cfg := Default()
	src, err := cfg.NewSource()
	require.NoError(t, err)
	m, ok := src.(*feed.MQTTSource)
	require.True(t, ok)
	assert.Equal(t, "Data", m.Topic(feed.PathData))

	cfg.Source = SourceRTDB
	cfg.RTDB.URL = "https://x.example.com"
	src, err = cfg.NewSource()
	require.NoError(t, err)
	assert.IsType(t, &feed.StreamSource{}, src)

	cfg.Source = SourceInflux
	src, err = cfg.NewSource()
	require.NoError(t, err)
	assert.IsType(t, &feed.InfluxSource{}, src)

	cfg.Source = "nope"
	_, err = cfg.NewSource()
	assert.ErrorIs(t, err, ErrInvalidSource)
}
