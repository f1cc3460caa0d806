// Package config provides configuration management for the sermon feed service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SERMONS_FEED_CHANNELID.
const EnvPrefix = "SERMONS"

// Feed sources.
const (
	SourceRSS     = "rss"
	SourceDataAPI = "data_api"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server   ServerConfig
	Feed     FeedConfig
	Poller   PollerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// ServerConfig contains HTTP server configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	APIKeys         []string
}

// FeedConfig is everything the retrieval pipeline needs. It is read once at
// startup and handed to the pipeline by value.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type FeedConfig struct {
	Source           string
	ChannelID        string
	APIKey           string
	RSSBaseURL       string
	APIBaseURL       string
	RelayURL         string
	RelayAPIRequests bool
	PageSize         int
	RequestTimeout   time.Duration
	UserAgent        string
	MaxBodyBytes     int64
	MinInterval      time.Duration
	// DailyQuota and QuotaThreshold (percent) bound Data API spending.
	DailyQuota       int
	QuotaThreshold   int
}

// PollerConfig controls the background refresh loop.
type PollerConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Enabled        bool
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// RabbitMQConfig contains RabbitMQ connection and queue configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Enabled    bool
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// URL returns the AMQP connection string.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.User, c.Password, c.Host, c.Port)
}

// RedisConfig configures the raw feed cache.
type RedisConfig struct {
	Enabled   bool
	URL       string
	KeyPrefix string
	TTL       time.Duration
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from config.yaml (if present) and SERMONS_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Feed.Source {
	case SourceRSS:
	case SourceDataAPI:
		if c.Feed.APIKey == "" {
			return errors.New("config: feed.apikey is required when feed.source is data_api")
		}
	default:
		return fmt.Errorf("config: unknown feed.source %q", c.Feed.Source)
	}

	if c.Feed.ChannelID == "" {
		return errors.New("config: feed.channelid is required")
	}
	if c.Feed.PageSize < 1 || c.Feed.PageSize > 50 {
		return fmt.Errorf("config: feed.pagesize must be between 1 and 50, got %d", c.Feed.PageSize)
	}
	if c.Poller.Enabled && c.Poller.Interval <= 0 {
		return errors.New("config: poller.interval must be positive")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdowntimeout", 30*time.Second)
	v.SetDefault("server.readtimeout", 15*time.Second)
	v.SetDefault("server.writetimeout", 30*time.Second)
	v.SetDefault("server.apikeys", []string{})

	// Feed
	v.SetDefault("feed.source", SourceRSS)
	v.SetDefault("feed.channelid", "UCfGHCtW5XlkY78l97_Rwu4Q")
	v.SetDefault("feed.apikey", "")
	v.SetDefault("feed.rssbaseurl", "https://www.youtube.com/feeds/videos.xml")
	v.SetDefault("feed.apibaseurl", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("feed.relayurl", "https://api.allorigins.win/get")
	v.SetDefault("feed.relayapirequests", false)
	v.SetDefault("feed.pagesize", 6)
	v.SetDefault("feed.requesttimeout", 10*time.Second)
	v.SetDefault("feed.useragent", "Mozilla/5.0 (compatible; SermonFeed/1.0)")
	v.SetDefault("feed.maxbodybytes", 5<<20)
	v.SetDefault("feed.mininterval", 250*time.Millisecond)
	v.SetDefault("feed.dailyquota", 10000)
	v.SetDefault("feed.quotathreshold", 90)

	// Poller
	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.interval", 15*time.Minute)
	v.SetDefault("poller.timeout", 30*time.Second)

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "sermons")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxconnections", 10)
	v.SetDefault("database.minconnections", 2)
	v.SetDefault("database.maxidletime", 10*time.Minute)
	v.SetDefault("database.maxlifetime", 1*time.Hour)

	// RabbitMQ
	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.exchange", "sermons.feed")
	v.SetDefault("rabbitmq.queue", "sermons.feed.updated")
	v.SetDefault("rabbitmq.routingkey", "feed.updated")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.keyprefix", "sermons:raw:")
	v.SetDefault("redis.ttl", time.Hour)

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}
