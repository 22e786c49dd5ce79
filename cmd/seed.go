package cmd

import (
	"context"
	"fmt"

	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo customers",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sqlDB, err := bootstrap()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		n, err := seedCustomers(ctx, sqlDB, repository.NewCustomersRepository(sqlDB, nil))
		if err != nil {
			return err
		}

		logger.Log.Info("seed completed", zap.Int("customers", n))
		return nil
	},
}

var demoCustomers = []model.Customer{
	{Email: "ada@example.com", OptIn: true, FirstName: "Ada", LastName: "Lovelace"},
	{Email: "alan@example.com", OptIn: false, FirstName: "Alan", LastName: "Turing"},
	{Email: "grace@example.com", OptIn: true, FirstName: "Grace", LastName: "Hopper"},
	{Email: "edsger@example.com", OptIn: false, FirstName: "Edsger", LastName: "Dijkstra"},
	{Email: "barbara@example.com", OptIn: true, FirstName: "Barbara", LastName: "Liskov"},
}

// seedCustomers upserts the demo customers by email (idempotent).
func seedCustomers(ctx context.Context, dbx *sqlx.DB, repo repository.CustomersRepository) (int, error) {
	tx, err := dbx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range demoCustomers {
		if err := repo.UpsertByEmail(ctx, tx, c); err != nil {
			return 0, fmt.Errorf("upsert customer %q: %w", c.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit customers: %w", err)
	}
	return len(demoCustomers), nil
}
