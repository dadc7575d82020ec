// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/store"
)

// migratorIface abstracts the migrator for testing.
type migratorIface interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// migratorFactory creates a migrator for the given database URL.
// Overridable in tests.
var migratorFactory = func(databaseURL string) (migratorIface, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply, roll back, or inspect Gatehouse schema migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, func(m migratorIface) error { return m.Up() }, "Migrations applied")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, func(m migratorIface) error { return m.Down() }, "Migrations rolled back")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE:  runMigrateStatus,
	})

	return cmd
}

func openMigrator() (migratorIface, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database URL is required (config database_url or DATABASE_URL)")
	}
	return migratorFactory(cfg.DatabaseURL)
}

func runMigrate(cmd *cobra.Command, apply func(migratorIface) error, doneMsg string) error {
	m, err := openMigrator()
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	if err := apply(m); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	cmd.Println(doneMsg)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator()
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	if dirty {
		cmd.Printf("Version: %d (dirty)\n", version)
	} else {
		cmd.Printf("Version: %d\n", version)
	}
	return nil
}
