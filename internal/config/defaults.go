package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/and161185/cloudbox/internal/crypto"
)

// Default returns a Config with every default applied.
func Default() Config {
	var c Config
	ApplyDefaults(&c)
	return c
}

// setDefaults registers every key with viper so environment variables are
// picked up even without a config file.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.public_url", d.HTTP.PublicURL)
	v.SetDefault("http.max_upload_bytes", d.HTTP.MaxUploadBytes)
	v.SetDefault("http.share_rate_per_minute", d.HTTP.ShareRatePerMinute)
	v.SetDefault("http.share_burst", d.HTTP.ShareBurst)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("health.enabled", d.Health.Enabled)
	v.SetDefault("health.addr", d.Health.Addr)
	v.SetDefault("health.probe_interval", d.Health.ProbeInterval)

	v.SetDefault("telegram.enabled", d.Telegram.Enabled)
	v.SetDefault("telegram.token", d.Telegram.Token)
	v.SetDefault("telegram.poll_timeout", d.Telegram.PollTimeout)
	v.SetDefault("telegram.debug", d.Telegram.Debug)

	v.SetDefault("registry.driver", d.Registry.Driver)
	v.SetDefault("registry.dsn", d.Registry.DSN)
	v.SetDefault("registry.path", d.Registry.Path)
	v.SetDefault("registry.token_length", d.Registry.TokenLength)
	v.SetDefault("registry.collision_retries", d.Registry.CollisionRetries)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.namespaces_root", d.Storage.NamespacesRoot)
	v.SetDefault("storage.shares_root", d.Storage.SharesRoot)
	v.SetDefault("storage.s3.bucket", d.Storage.S3.Bucket)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", d.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.access_key", d.Storage.S3.AccessKey)
	v.SetDefault("storage.s3.secret_key", d.Storage.S3.SecretKey)
	v.SetDefault("storage.s3.use_path_style", d.Storage.S3.UsePathStyle)

	v.SetDefault("shares.token_length", d.Shares.TokenLength)
	v.SetDefault("shares.collision_retries", d.Shares.CollisionRetries)
	v.SetDefault("shares.ttl", d.Shares.TTL)
	v.SetDefault("shares.sweep_interval", d.Shares.SweepInterval)
}

// ApplyDefaults fills zero values. Explicit values are kept.
func ApplyDefaults(c *Config) {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.MaxUploadBytes == 0 {
		c.HTTP.MaxUploadBytes = 32 << 20
	}
	if c.HTTP.ShareRatePerMinute == 0 {
		c.HTTP.ShareRatePerMinute = 30
	}
	if c.HTTP.ShareBurst == 0 {
		c.HTTP.ShareBurst = 10
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if c.Health.Addr == "" {
		c.Health.Addr = ":8081"
	}
	if c.Health.ProbeInterval == 0 {
		c.Health.ProbeInterval = 15 * time.Second
	}

	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 60
	}

	if c.Registry.Driver == "" {
		c.Registry.Driver = "sqlite"
	}
	if c.Registry.Path == "" {
		switch c.Registry.Driver {
		case "bolt":
			c.Registry.Path = "cloud_storage.bolt"
		default:
			c.Registry.Path = "cloud_storage.db"
		}
	}
	if c.Registry.TokenLength == 0 {
		c.Registry.TokenLength = crypto.IdentityTokenLen
	}
	if c.Registry.CollisionRetries == 0 {
		c.Registry.CollisionRetries = 3
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "fs"
	}
	if c.Storage.NamespacesRoot == "" {
		c.Storage.NamespacesRoot = "files"
	}
	if c.Storage.SharesRoot == "" {
		c.Storage.SharesRoot = "shares"
	}

	if c.Shares.TokenLength == 0 {
		c.Shares.TokenLength = crypto.ShareTokenLen
	}
	if c.Shares.CollisionRetries == 0 {
		c.Shares.CollisionRetries = 3
	}
	if c.Shares.SweepInterval == 0 {
		c.Shares.SweepInterval = time.Hour
	}
}
