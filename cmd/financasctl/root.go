package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"financas/internal/cli"
	"financas/internal/config"
	"financas/internal/log"
)

// newRootCmd builds the command tree. Configuration is resolved by v in the
// order flags, environment, config file, defaults.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "financasctl",
		Short:        "Reports and maintenance for financas",
		Long:         `financasctl reads the same configuration as the server and works on its data store directly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./financas.yaml when present)")
	flags.String("backend", "", "data backend: memory, sqlite or mongo")
	flags.String("sqlite-path", "", "SQLite database path")
	flags.String("mongo-uri", "", "MongoDB connection URI")
	flags.String("timezone", "", "time zone used for month boundaries")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	for key, flag := range map[string]string{
		"data_backend":   "backend",
		"sqlite_db_path": "sqlite-path",
		"mongo_uri":      "mongo-uri",
		"timezone":       "timezone",
		"log_level":      "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	v.SetDefault("log_level", "warn")

	root.AddCommand(
		newAnalyzeCmd(v),
		newCategoriesCmd(),
		newMigrateCmd(v),
	)
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("financas")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// loadConfig maps the environment-style keys of config.Config onto viper.
func loadConfig(v *viper.Viper) *config.Config {
	return config.LoadWith(v.GetString)
}

// openApp wires the domain layer for commands that read transactions. Only
// the settings those commands use are checked; the session and HTTP keys
// are not required here.
func openApp(ctx context.Context, cmd *cobra.Command, v *viper.Viper) (*cli.App, error) {
	cfg := loadConfig(v)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentCLI, cmd.ErrOrStderr())
	return cli.BuildApp(ctx, cfg, logger)
}
