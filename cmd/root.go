package cmd

import (
	"fmt"
	"os"

	"github.com/jmehdipour/customers-api/internal/config"
	"github.com/jmehdipour/customers-api/internal/db"
	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:          "customers-api",
		Short:        "Customer records API",
		SilenceUsage: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// bootstrap loads config, initializes the global logger and opens MySQL.
func bootstrap() (config.Config, *sqlx.DB, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("mysql connect: %w", err)
	}
	return cfg, sqlDB, nil
}
