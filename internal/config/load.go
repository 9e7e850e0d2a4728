package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. ATTACHMENTS_DATABASE_URL.
const EnvPrefix = "ATTACHMENTS"

// DefaultAllowedMimeTypes are PDF and the legacy and OOXML spreadsheet formats.
var DefaultAllowedMimeTypes = []string{
	"application/pdf",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// keys without a default still need binding so AutomaticEnv sees them on Unmarshal
var envOnlyKeys = []string{
	"database.url",
	"storage.endpoint",
	"storage.access_key_id",
	"storage.secret_access_key",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8005)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "task-attachments")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.force_path_style", false)
	v.SetDefault("storage.signed_url_ttl", "1h")
	v.SetDefault("storage.operation_timeout", "30s")

	v.SetDefault("attachments.max_file_size", "50MiB")
	v.SetDefault("attachments.task_quota", "50MiB")
	v.SetDefault("attachments.allowed_mime_types", DefaultAllowedMimeTypes)

	v.SetDefault("metrics.enabled", true)
}

// NewViper returns a viper instance with defaults and environment binding
// applied. The CLI binds its flags onto the returned instance before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		// BindEnv only fails when called without a key
		_ = v.BindEnv(key)
	}

	return v
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// An empty configFile looks for config.yaml in the working directory and
// carries on without it if absent; an explicit path must exist.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configFile string) (*Config, error) {
	return LoadFrom(NewViper(), configFile)
}

// LoadFrom is Load over a caller-prepared viper instance.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.resolveSizes(); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadDatabaseFrom reads and validates only the database section. The
// migrate command uses it so that it runs without storage settings.
func LoadDatabaseFrom(v *viper.Viper, configFile string) (*DatabaseConfig, error) {
	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg.Database); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg.Database, nil
}

// readConfigFile reads an explicit config file, which must exist, or the
// optional config.yaml in the working directory.
func readConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %q: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

func (c *Config) resolveSizes() error {
	var err error
	if c.Attachments.MaxFileSizeBytes, err = parseSize("attachments.max_file_size", c.Attachments.MaxFileSize); err != nil {
		return err
	}
	if c.Attachments.TaskQuotaBytes, err = parseSize("attachments.task_quota", c.Attachments.TaskQuota); err != nil {
		return err
	}
	return nil
}

func parseSize(key, raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("config validation failed: %s: %w", key, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("config validation failed: %s: %q is too large", key, raw)
	}
	return int64(n), nil
}
