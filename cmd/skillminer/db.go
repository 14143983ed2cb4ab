package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/skillminer/skillminer/pkg/db"
	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
	"github.com/skillminer/skillminer/pkg/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the skillminer database (migrations, status, etc.)`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		return withDB(ctx, func(conn *sqlx.DB) error {
			runner := db.NewMigrationRunner(conn)
			if err := runner.Run(ctx, store.Migrations()); err != nil {
				return err
			}
			presenter.Success("Database migrations applied")
			return nil
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		return withDB(ctx, func(conn *sqlx.DB) error {
			runner := db.NewMigrationRunner(conn)
			applied, err := runner.GetAppliedVersions(ctx)
			if err != nil {
				return err
			}

			appliedMap := make(map[int64]bool)
			for _, v := range applied {
				appliedMap[v] = true
			}

			all := store.Migrations()

			fmt.Println("Database Migration Status")
			fmt.Println("=========================")
			fmt.Printf("Database: %s\n\n", databasePath())

			appliedCount := 0
			for _, m := range all {
				status := "[ ]"
				if appliedMap[m.Version] {
					status = "[x]"
					appliedCount++
				}
				fmt.Printf("%s %d - %s\n", status, m.Version, m.Description)
			}

			fmt.Printf("\nApplied: %d/%d migrations\n", appliedCount, len(all))
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback the last database migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		return withDB(ctx, func(conn *sqlx.DB) error {
			runner := db.NewMigrationRunner(conn)
			applied, err := runner.GetAppliedVersions(ctx)
			if err != nil {
				return err
			}

			if len(applied) == 0 {
				presenter.Warning("No migrations to rollback")
				return nil
			}

			lastVersion := applied[len(applied)-1]
			presenter.Info(fmt.Sprintf("Rolling back migration %d", lastVersion))

			if err := runner.Rollback(ctx, store.Migrations()); err != nil {
				return err
			}

			presenter.Success(fmt.Sprintf("Successfully rolled back migration %d", lastVersion))
			return nil
		})
	},
}

// withDB opens the configured sqlite database, runs fn and closes it.
func withDB(ctx context.Context, fn func(conn *sqlx.DB) error) error {
	conn, err := db.Open(ctx, databasePath())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.G(ctx).WithError(closeErr).Error("failed to close database")
		}
	}()

	return fn(conn)
}

func databasePath() string {
	config, err := loadConfig()
	if err == nil && config.Store.DBPath != "" {
		return config.Store.DBPath
	}
	path, err := db.DefaultDBPath()
	if err != nil {
		return "unknown"
	}
	return path
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
}
