package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tasktrack/attachments/internal/config"
	"github.com/tasktrack/attachments/internal/platform/logger"
	"github.com/tasktrack/attachments/internal/platform/postgres"
)

var migrateCommands = []string{"up", "down", "status", "version"}

func newMigrateCmd(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate {up|down|status|version}",
		Short:     "Manage the database schema",
		ValidArgs: migrateCommands,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg, err := config.LoadDatabaseFrom(v, *configFile)
			if err != nil {
				return err
			}

			l, err := logger.Setup(logger.LoggerConfig{Level: v.GetString("server.log_level")})
			if err != nil {
				return err
			}

			return runMigrations(cmd.Context(), dbCfg, args[0], l)
		},
	}
}

// runMigrations opens its own short-lived connection; migrations never share
// the server's pool.
func runMigrations(ctx context.Context, dbCfg *config.DatabaseConfig, command string, l *slog.Logger) error {
	db, err := sql.Open("pgx", dbCfg.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Error("failed to close database connection", slog.String("error", err.Error()))
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return postgres.Migrate(ctx, db, command, l)
}
