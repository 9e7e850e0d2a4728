package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"
	"github.com/tasktrack/attachments/internal/config"
	"github.com/tasktrack/attachments/internal/platform/logger"
)

// loadAppConfig loads the application configuration from the environment,
// bound flags and the optional config file.
func loadAppConfig(v *viper.Viper, configFile string) (*config.Config, error) {
	cfg, err := config.LoadFrom(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setupAppLogger configures the default logger from the server settings
// and logs the effective configuration, minus secrets.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("storage_endpoint", cfg.Storage.Endpoint),
		slog.String("bucket", cfg.Storage.Bucket),
		slog.Int64("max_file_size", cfg.Attachments.MaxFileSizeBytes),
		slog.Int64("task_quota", cfg.Attachments.TaskQuotaBytes),
		slog.Any("allowed_mime_types", cfg.Attachments.AllowedMimeTypes),
		slog.Bool("metrics_enabled", cfg.Metrics.Enabled))
	l.Debug("credentials",
		slog.Bool("static_storage_credentials", cfg.Storage.AccessKeyID != ""))

	return l, nil
}
