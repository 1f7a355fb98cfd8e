package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "sqlite", cfg.Registry.Driver)
	require.Equal(t, "cloud_storage.db", cfg.Registry.Path)
	require.Equal(t, 18, cfg.Registry.TokenLength)
	require.Equal(t, 12, cfg.Shares.TokenLength)
	require.Equal(t, 3, cfg.Registry.CollisionRetries)
	require.Equal(t, "files", cfg.Storage.NamespacesRoot)
	require.Equal(t, "shares", cfg.Storage.SharesRoot)
	require.Zero(t, cfg.Shares.TTL)
	require.False(t, cfg.Telegram.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	p := writeFile(t, `
logging:
  level: DEBUG
  format: console
http:
  addr: 127.0.0.1:9090
  public_url: https://box.example
registry:
  driver: bolt
  path: /var/lib/cloudbox/registry.bolt
shares:
  ttl: 24h
  sweep_interval: 10m
`)
	t.Setenv("CLOUDBOX_HTTP_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("CLOUDBOX_TELEGRAM_ENABLED", "true")
	t.Setenv("CLOUDBOX_TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
	require.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	require.Equal(t, "https://box.example", cfg.HTTP.PublicURL)
	require.EqualValues(t, 1024, cfg.HTTP.MaxUploadBytes)
	require.Equal(t, "bolt", cfg.Registry.Driver)
	require.Equal(t, "/var/lib/cloudbox/registry.bolt", cfg.Registry.Path)
	require.Equal(t, 24*time.Hour, cfg.Shares.TTL)
	require.Equal(t, 10*time.Minute, cfg.Shares.SweepInterval)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, "123:abc", cfg.Telegram.Token)
}

func TestLoad_CollisionRetriesDisabled(t *testing.T) {
	t.Setenv("CLOUDBOX_REGISTRY_COLLISION_RETRIES", "-1")
	t.Setenv("CLOUDBOX_SHARES_COLLISION_RETRIES", "-1")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, -1, cfg.Registry.CollisionRetries)
	require.Equal(t, -1, cfg.Shares.CollisionRetries)

	cfg.Registry.CollisionRetries = -2
	require.Error(t, Validate(cfg))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"bad driver":         func(c *Config) { c.Registry.Driver = "mysql" },
		"postgres needs dsn": func(c *Config) { c.Registry.Driver = "postgres" },
		"telegram token":     func(c *Config) { c.Telegram.Enabled = true },
		"s3 bucket":          func(c *Config) { c.Storage.Driver = "s3"; c.Storage.S3.Region = "eu-west-1" },
		"s3 region":          func(c *Config) { c.Storage.Driver = "s3"; c.Storage.S3.Bucket = "b" },
		"s3 half creds": func(c *Config) {
			c.Storage.Driver = "s3"
			c.Storage.S3.Bucket = "b"
			c.Storage.S3.Region = "r"
			c.Storage.S3.AccessKey = "ak"
		},
		"same roots":     func(c *Config) { c.Storage.SharesRoot = "./files/" },
		"short token":    func(c *Config) { c.Registry.TokenLength = 4 },
		"bad addr":       func(c *Config) { c.HTTP.Addr = "nope" },
		"bad level":      func(c *Config) { c.Logging.Level = "loud" },
		"negative ttl":   func(c *Config) { c.Shares.TTL = -time.Second },
		"bad public url": func(c *Config) { c.HTTP.PublicURL = "not a url" },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mut(&c)
			require.Error(t, Validate(&c))
		})
	}

	c := Default()
	require.NoError(t, Validate(&c))

	c.Storage.Driver = "s3"
	c.Storage.S3.Bucket = "b"
	c.Storage.S3.Region = "us-east-1"
	require.NoError(t, Validate(&c))
}
