// This file defines the configuration structure for the application.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Download struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"download"`
	Executor struct {
		URL               string  `mapstructure:"url"`
		Username          string  `mapstructure:"username"`
		Password          string  `mapstructure:"password"`
		TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	} `mapstructure:"executor"`
	Discovery struct {
		BaseURL           string  `mapstructure:"base_url"`
		TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
		Workers           int     `mapstructure:"workers"`
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		SubgroupPriority  []int   `mapstructure:"subgroup_priority"`
	} `mapstructure:"discovery"`
	Loop struct {
		IntervalSeconds int  `mapstructure:"interval_seconds"`
		Autostart       bool `mapstructure:"autostart"`
	} `mapstructure:"loop"`
	Sync struct {
		IntervalSeconds int  `mapstructure:"interval_seconds"`
		WatchDownloads  bool `mapstructure:"watch_downloads"`
	} `mapstructure:"sync"`
	Snapshot struct {
		TickSeconds int `mapstructure:"tick_seconds"`
	} `mapstructure:"snapshot"`
	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")

	// ANISYNC_EXECUTOR_URL overrides `executor.url`, and so on.
	v.SetEnvPrefix("ANISYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database.path", "./anisync.db")
	v.SetDefault("download.path", "./downloads")
	v.SetDefault("executor.url", "http://127.0.0.1:8081")
	v.SetDefault("executor.username", "admin")
	v.SetDefault("executor.password", "adminadmin")
	v.SetDefault("executor.timeout_seconds", 10)
	v.SetDefault("executor.requests_per_second", 5)
	v.SetDefault("discovery.base_url", "https://mikanani.me")
	v.SetDefault("discovery.timeout_seconds", 10)
	v.SetDefault("discovery.workers", 4)
	v.SetDefault("discovery.requests_per_second", 2)
	v.SetDefault("discovery.subgroup_priority", []int{583, 382, 370})
	v.SetDefault("loop.interval_seconds", 600)
	v.SetDefault("loop.autostart", false)
	v.SetDefault("sync.interval_seconds", 5)
	v.SetDefault("sync.watch_downloads", true)
	v.SetDefault("snapshot.tick_seconds", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Validate rejects settings the reconciliation loop cannot run with.
func (c *Config) Validate() error {
	if c.Loop.IntervalSeconds <= 0 {
		return fmt.Errorf("loop.interval_seconds must be positive, got %d", c.Loop.IntervalSeconds)
	}
	if strings.TrimSpace(c.Download.Path) == "" {
		return errors.New("download.path must not be empty")
	}
	u, err := url.Parse(c.Executor.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("executor.url %q is not a valid URL", c.Executor.URL)
	}
	if c.Discovery.Workers <= 0 {
		c.Discovery.Workers = 1
	}
	return nil
}

// ExecutorTimeout returns the per-request timeout for download client calls.
func (c *Config) ExecutorTimeout() time.Duration {
	return secondsOr(c.Executor.TimeoutSeconds, 10)
}

// DiscoveryTimeout returns the per-request timeout for discovery scraping.
func (c *Config) DiscoveryTimeout() time.Duration {
	return secondsOr(c.Discovery.TimeoutSeconds, 10)
}

// SnapshotTick returns how often progress snapshots are pushed to observers.
func (c *Config) SnapshotTick() time.Duration {
	return secondsOr(c.Snapshot.TickSeconds, 2)
}

// SyncInterval returns how often the status synchronizer sweeps.
func (c *Config) SyncInterval() time.Duration {
	return secondsOr(c.Sync.IntervalSeconds, 5)
}

func secondsOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
