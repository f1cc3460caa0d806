package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, SourceRSS, cfg.Feed.Source)
	assert.Equal(t, "UCfGHCtW5XlkY78l97_Rwu4Q", cfg.Feed.ChannelID)
	assert.Equal(t, "https://www.youtube.com/feeds/videos.xml", cfg.Feed.RSSBaseURL)
	assert.Equal(t, "https://api.allorigins.win/get", cfg.Feed.RelayURL)
	assert.False(t, cfg.Feed.RelayAPIRequests)
	assert.Equal(t, 6, cfg.Feed.PageSize)
	assert.Equal(t, int64(5<<20), cfg.Feed.MaxBodyBytes)
	assert.Equal(t, 10000, cfg.Feed.DailyQuota)
	assert.Equal(t, 90, cfg.Feed.QuotaThreshold)

	assert.True(t, cfg.Poller.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Poller.Interval)

	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)

	assert.Equal(t, "sermons.feed", cfg.RabbitMQ.Exchange)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERMONS_SERVER_PORT", "9090")
	t.Setenv("SERMONS_SERVER_APIKEYS", "alpha,beta")
	t.Setenv("SERMONS_FEED_SOURCE", "data_api")
	t.Setenv("SERMONS_FEED_APIKEY", "secret")
	t.Setenv("SERMONS_FEED_PAGESIZE", "12")
	t.Setenv("SERMONS_POLLER_INTERVAL", "2m")
	t.Setenv("SERMONS_DATABASE_HOST", "testdb")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Server.APIKeys)
	assert.Equal(t, SourceDataAPI, cfg.Feed.Source)
	assert.Equal(t, "secret", cfg.Feed.APIKey)
	assert.Equal(t, 12, cfg.Feed.PageSize)
	assert.Equal(t, 2*time.Minute, cfg.Poller.Interval)
	assert.Equal(t, "testdb", cfg.Database.Host)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
feed:
  channelid: UCaaaaaaaaaaaaaaaaaaaaaa
  relayurl: ""
  pagesize: 3
redis:
  enabled: true
  ttl: 5m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, "UCaaaaaaaaaaaaaaaaaaaaaa", cfg.Feed.ChannelID)
	assert.Empty(t, cfg.Feed.RelayURL)
	assert.Equal(t, 3, cfg.Feed.PageSize)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	// untouched keys keep their defaults
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("feed: [unclosed"), 0o600))

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	_, err := load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Feed: FeedConfig{
				Source:    SourceRSS,
				ChannelID: "UCfGHCtW5XlkY78l97_Rwu4Q",
				PageSize:  6,
			},
			Poller: PollerConfig{Enabled: true, Interval: time.Minute},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{name: "valid rss", mutate: func(*Config) {}},
		{
			name:        "unknown source",
			mutate:      func(c *Config) { c.Feed.Source = "atom" },
			errContains: "unknown feed.source",
		},
		{
			name:        "data api without key",
			mutate:      func(c *Config) { c.Feed.Source = SourceDataAPI },
			errContains: "feed.apikey is required",
		},
		{
			name: "data api with key",
			mutate: func(c *Config) {
				c.Feed.Source = SourceDataAPI
				c.Feed.APIKey = "k"
			},
		},
		{
			name:        "missing channel",
			mutate:      func(c *Config) { c.Feed.ChannelID = "" },
			errContains: "feed.channelid is required",
		},
		{
			name:        "page size too large",
			mutate:      func(c *Config) { c.Feed.PageSize = 51 },
			errContains: "feed.pagesize",
		},
		{
			name:        "page size zero",
			mutate:      func(c *Config) { c.Feed.PageSize = 0 },
			errContains: "feed.pagesize",
		},
		{
			name:        "poller without interval",
			mutate:      func(c *Config) { c.Poller.Interval = 0 },
			errContains: "poller.interval",
		},
		{
			name: "disabled poller ignores interval",
			mutate: func(c *Config) {
				c.Poller.Enabled = false
				c.Poller.Interval = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestRabbitMQConfig_URL(t *testing.T) {
	t.Parallel()

	c := RabbitMQConfig{User: "guest", Password: "pw", Host: "mq", Port: 5672}
	assert.Equal(t, "amqp://guest:pw@mq:5672/", c.URL())
}
