package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tasktrack/attachments/internal/platform/postgres"
)

func newServeCmd(v *viper.Viper, configFile *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the attachments HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(v, *configFile)
			if err != nil {
				return err
			}

			logger, err := setupAppLogger(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			db, err := setupAppDatabase(ctx, cfg, logger)
			if err != nil {
				logger.Error("database setup failed", slog.String("error", err.Error()))
				return err
			}

			if migrate {
				if err := postgres.Migrate(ctx, db, "up", logger); err != nil {
					_ = db.Close()
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
			}

			app, err := newApplication(ctx, cfg, logger, db)
			if err != nil {
				_ = db.Close()
				logger.Error("application setup failed", slog.String("error", err.Error()))
				return err
			}

			return app.Run(ctx)
		},
	}

	cmd.Flags().Int("port", 0, "HTTP port (overrides server.port)")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn or error")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	bindFlag(v, cmd, "server.port", "port")
	bindFlag(v, cmd, "server.log_level", "log-level")

	return cmd
}
