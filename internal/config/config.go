package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Storage     StorageConfig     `mapstructure:"storage" validate:"required"`
	Attachments AttachmentsConfig `mapstructure:"attachments" validate:"required"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gt=0"`
}

// StorageConfig describes the S3-compatible bucket holding attachment bytes.
// Leave the credentials empty to use the environment/IAM credential chain.
type StorageConfig struct {
	Endpoint         string        `mapstructure:"endpoint" validate:"required"`
	Region           string        `mapstructure:"region"`
	Bucket           string        `mapstructure:"bucket" validate:"required"`
	AccessKeyID      string        `mapstructure:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey  string        `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
	UseSSL           bool          `mapstructure:"use_ssl"`
	ForcePathStyle   bool          `mapstructure:"force_path_style"`
	SignedURLTTL     time.Duration `mapstructure:"signed_url_ttl" validate:"gt=0,max=168h"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"gt=0"`
}

// AttachmentsConfig is the upload policy. Sizes are written in humanize
// syntax ("50MiB", "2 MB") and resolved into the *Bytes fields by Load.
type AttachmentsConfig struct {
	MaxFileSize      string   `mapstructure:"max_file_size" validate:"required"`
	TaskQuota        string   `mapstructure:"task_quota" validate:"required"`
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types" validate:"required,min=1,dive,required"`

	MaxFileSizeBytes int64 `mapstructure:"-" validate:"gt=0"`
	TaskQuotaBytes   int64 `mapstructure:"-" validate:"gt=0"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
