package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tasktrack/attachments/internal/config"
	"github.com/tasktrack/attachments/internal/platform/metrics"
	"github.com/tasktrack/attachments/internal/platform/postgres"
	"github.com/tasktrack/attachments/internal/platform/s3"
	"github.com/tasktrack/attachments/internal/service/attachment"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config

	logger  *slog.Logger
	db      *sql.DB
	metrics *metrics.Metrics // nil when metrics are disabled

	attachmentService attachment.Service
}

// newApplication wires the blob store, metadata store and service together.
// The database connection must already be established.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	blobs, err := s3.New(s3.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
		ForcePathStyle:  cfg.Storage.ForcePathStyle,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	// A missing bucket is reported but not fatal: uploads fail with
	// StorageWriteFailure until it exists.
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Storage.OperationTimeout)
	defer cancel()
	if err := blobs.Ping(pingCtx); err != nil {
		logger.Warn("blob store is not reachable", slog.String("error", err.Error()))
	} else {
		logger.Info("blob store reachable", slog.String("bucket", blobs.Bucket()))
	}

	if cfg.Metrics.Enabled {
		app.metrics = metrics.New()
	}

	attachmentStore := postgres.NewPostgresAttachmentStore(db, logger)
	repo := attachment.NewRepositoryAdapter(attachmentStore, db)

	app.attachmentService = attachment.NewService(repo, blobs, attachment.Config{
		Policy: attachment.Policy{
			AllowedMimeTypes: cfg.Attachments.AllowedMimeTypes,
			MaxFileSize:      cfg.Attachments.MaxFileSizeBytes,
			TaskQuota:        cfg.Attachments.TaskQuotaBytes,
		},
		SignedURLTTL:     cfg.Storage.SignedURLTTL,
		OperationTimeout: cfg.Storage.OperationTimeout,
	}, app.metrics, logger)

	logger.Info("application initialized successfully")
	return app, nil
}

// Run starts the HTTP server and blocks until it has shut down.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
