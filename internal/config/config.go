// Package config loads server configuration from a YAML file, .env and
// CLOUDBOX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CLOUDBOX_HTTP_ADDR.
const EnvPrefix = "CLOUDBOX"

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Health   HealthConfig   `mapstructure:"health"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Registry RegistryConfig `mapstructure:"registry"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Shares   SharesConfig   `mapstructure:"shares"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json console"`
	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

type HTTPConfig struct {
	Addr               string        `mapstructure:"addr" validate:"required,hostname_port"`
	PublicURL          string        `mapstructure:"public_url" validate:"omitempty,url"`
	MaxUploadBytes     int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
	ShareRatePerMinute int           `mapstructure:"share_rate_per_minute" validate:"gte=-1"` // -1 disables
	ShareBurst         int           `mapstructure:"share_burst" validate:"gte=0"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type HealthConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"gt=0"`
}

type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token" validate:"required_if=Enabled true"`
	PollTimeout int    `mapstructure:"poll_timeout" validate:"gte=0"`
	Debug       bool   `mapstructure:"debug"`
}

type RegistryConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite bolt"`
	// DSN is used by postgres.
	DSN string `mapstructure:"dsn"`
	// Path is the database file for sqlite and bolt.
	Path             string `mapstructure:"path"`
	TokenLength      int    `mapstructure:"token_length" validate:"gte=8,lte=128"`
	CollisionRetries int    `mapstructure:"collision_retries" validate:"gte=-1,lte=100"` // -1 disables
}

type StorageConfig struct {
	Driver         string   `mapstructure:"driver" validate:"required,oneof=fs s3"`
	NamespacesRoot string   `mapstructure:"namespaces_root" validate:"required"`
	SharesRoot     string   `mapstructure:"shares_root" validate:"required"`
	S3             S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type SharesConfig struct {
	TokenLength      int           `mapstructure:"token_length" validate:"gte=8,lte=128"`
	CollisionRetries int           `mapstructure:"collision_retries" validate:"gte=-1,lte=100"` // -1 disables
	TTL              time.Duration `mapstructure:"ttl" validate:"gte=0"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// Load reads .env (if present), then the config file at path (optional when
// empty), then environment overrides, and returns a validated Config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
