package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"financas/internal/backend"
	"financas/internal/storage"
)

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(v)
			if backend.BackendType(cfg.DataBackend) != backend.SQLiteBackend {
				return fmt.Errorf("migrate needs the sqlite backend, got %q", cfg.DataBackend)
			}

			if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0o755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return err
			}

			version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			if dirty {
				return fmt.Errorf("schema version %d is dirty", version)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", cfg.SQLiteDBPath, version)
			return nil
		},
	}
}
