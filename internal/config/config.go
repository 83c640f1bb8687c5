// Package config loads the dashboard configuration: a .env file, an optional
// YAML file named by CROP_CONFIG_FILE, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/crop_advisor/internal/feed"
	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
	"github.com/LeonardoBeccarini/crop_advisor/pkg/rabbitmq"
)

const (
	SourceMQTT   = "mqtt"
	SourceRTDB   = "rtdb"
	SourceInflux = "influx"
)

var (
	ErrInvalidSource   = errors.New("config: invalid feed source")
	ErrInvalidEncoding = errors.New("config: invalid feed encoding")
	ErrMissingEndpoint = errors.New("config: missing endpoint")
)

type MQTT struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type RTDB struct {
	URL             string        `yaml:"url"`
	Auth            string        `yaml:"auth"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerOpen     time.Duration `yaml:"breaker_open"`
}

type Influx struct {
	URL          string        `yaml:"url"`
	Token        string        `yaml:"token"`
	Org          string        `yaml:"org"`
	Bucket       string        `yaml:"bucket"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Lookback     time.Duration `yaml:"lookback"`
}

type Config struct {
	Source   string `yaml:"source"`
	Encoding string `yaml:"encoding"`

	MQTT   MQTT   `yaml:"mqtt"`
	RTDB   RTDB   `yaml:"rtdb"`
	Influx Influx `yaml:"influx"`

	Port     string `yaml:"port"`
	GRPCPort string `yaml:"grpc_port"`
	Debug    bool   `yaml:"debug"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Source:   SourceMQTT,
		Encoding: "json",
		MQTT: MQTT{
			Host:     "localhost",
			Port:     1883,
			User:     "guest",
			Password: "guest",
			ClientID: "crop-dashboard",
		},
		RTDB: RTDB{BreakerFailures: 5, BreakerOpen: 30 * time.Second},
		Influx: Influx{
			URL:          "http://localhost:8086",
			Org:          "farm",
			Bucket:       "sensors",
			PollInterval: 30 * time.Second,
			Lookback:     24 * time.Hour,
		},
		Port:     "5009",
		GRPCPort: "50051",
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Infof("config: no .env file loaded: %v", err)
	}
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CROP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Source = strings.ToLower(getenv("FEED_SOURCE", c.Source))
	c.Encoding = strings.ToLower(getenv("FEED_ENCODING", c.Encoding))

	c.MQTT.Host = getenv("RABBITMQ_HOST", c.MQTT.Host)
	c.MQTT.Port = getenvInt("RABBITMQ_PORT", c.MQTT.Port)
	c.MQTT.User = getenv("RABBITMQ_USER", c.MQTT.User)
	c.MQTT.Password = getenv("RABBITMQ_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = getenv("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.TopicPrefix = getenv("FEED_TOPIC_PREFIX", c.MQTT.TopicPrefix)

	c.RTDB.URL = getenv("RTDB_URL", c.RTDB.URL)
	c.RTDB.Auth = getenv("RTDB_AUTH", c.RTDB.Auth)
	c.RTDB.BreakerFailures = getenvInt("RTDB_BREAKER_FAILURES", c.RTDB.BreakerFailures)
	c.RTDB.BreakerOpen = getenvDuration("RTDB_BREAKER_OPEN", c.RTDB.BreakerOpen)

	c.Influx.URL = getenv("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = getenv("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = getenv("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = getenv("INFLUX_BUCKET", c.Influx.Bucket)
	c.Influx.PollInterval = getenvDuration("INFLUX_POLL_INTERVAL", c.Influx.PollInterval)
	c.Influx.Lookback = getenvDuration("INFLUX_LOOKBACK", c.Influx.Lookback)

	c.Port = getenv("PORT", c.Port)
	c.GRPCPort = getenv("GRPC_PORT", c.GRPCPort)
	c.Debug = getenvBool("DEBUG", c.Debug)
}

// Validate checks the source, the encoding and the endpoint of the selected source.
func (c *Config) Validate() error {
	if _, err := feed.CodecByName(c.Encoding); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEncoding, c.Encoding)
	}
	switch c.Source {
	case SourceMQTT:
		if c.MQTT.Host == "" || c.MQTT.Port <= 0 {
			return fmt.Errorf("%w: mqtt broker host/port", ErrMissingEndpoint)
		}
	case SourceRTDB:
		if !validURL(c.RTDB.URL) {
			return fmt.Errorf("%w: realtime database url %q", ErrMissingEndpoint, c.RTDB.URL)
		}
	case SourceInflux:
		if !validURL(c.Influx.URL) || c.Influx.Bucket == "" {
			return fmt.Errorf("%w: influx url/bucket", ErrMissingEndpoint)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSource, c.Source)
	}
	return nil
}

func (c *Config) RabbitMQ() rabbitmq.RabbitMQConfig {
	return rabbitmq.RabbitMQConfig{
		Host:     c.MQTT.Host,
		Port:     c.MQTT.Port,
		User:     c.MQTT.User,
		Password: c.MQTT.Password,
		ClientID: c.MQTT.ClientID,
	}
}

func (c *Config) Stream() feed.StreamConfig {
	return feed.StreamConfig{
		BaseURL:         c.RTDB.URL,
		Auth:            c.RTDB.Auth,
		BreakerFailures: c.RTDB.BreakerFailures,
		BreakerOpenFor:  c.RTDB.BreakerOpen,
	}
}

func (c *Config) InfluxSource() feed.InfluxConfig {
	return feed.InfluxConfig{
		URL:          c.Influx.URL,
		Token:        c.Influx.Token,
		Org:          c.Influx.Org,
		Bucket:       c.Influx.Bucket,
		PollInterval: c.Influx.PollInterval,
		Lookback:     c.Influx.Lookback,
	}
}

// NewSource builds the feed client selected by Source.
func (c *Config) NewSource() (feed.Source, error) {
	codec, err := feed.CodecByName(c.Encoding)
	if err != nil {
		return nil, err
	}
	switch c.Source {
	case SourceMQTT:
		return feed.NewMQTTSource(c.RabbitMQ(), c.MQTT.TopicPrefix, codec, nil), nil
	case SourceRTDB:
		return feed.NewStreamSource(c.Stream()), nil
	case SourceInflux:
		return feed.NewInfluxSource(c.InfluxSource()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidSource, c.Source)
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warnf("config: ignoring %s=%q: not an integer", k, v)
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
		log.Warnf("config: ignoring %s=%q: not a duration", k, v)
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warnf("config: ignoring %s=%q: not a boolean", k, v)
	}
	return d
}
