package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tasktrack/attachments/internal/config"
)

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configFile string

	cmd := &cobra.Command{
		Use:          "attachments-server",
		Short:        "Task attachment storage service",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"path to a config file (default: ./config.yaml when present)")

	cmd.AddCommand(
		newServeCmd(v, &configFile),
		newMigrateCmd(v, &configFile),
	)

	return cmd
}

// bindFlag binds a command flag onto a config key. A flag only overrides the
// environment and config file when it is set explicitly.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	// BindPFlag only fails for a nil flag
	_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
}
