package cmd

import (
	"context"
	"fmt"

	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateFresh bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema (--fresh drops existing tables first)",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sqlDB, err := bootstrap()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := runMigrations(cmd.Context(), sqlDB, migrateFresh); err != nil {
			return err
		}

		logger.Log.Info("migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateFresh, "fresh", false, "drop tables before creating them (destroys data)")
}

func runMigrations(ctx context.Context, sqlDB *sqlx.DB, fresh bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if fresh {
		for _, stmt := range migrations.DropStatements {
			if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("drop: %w", err)
			}
		}
	}

	all, err := migrations.All()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, m := range all {
		if _, err := sqlDB.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("exec migration %s: %w", m.Name, err)
		}
		logger.Log.Info("migration applied", zap.String("name", m.Name))
	}
	return nil
}
