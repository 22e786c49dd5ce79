package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/customers-api/internal/db"
	httpSrv "github.com/jmehdipour/customers-api/internal/http"
	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics.MustRegister(prometheus.DefaultRegisterer)
		mp, err := metrics.InitMeterProvider(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("init meter provider: %w", err)
		}
		defer func() { _ = mp.Shutdown(context.Background()) }()

		cfg, mysqlDB, err := bootstrap()
		if err != nil {
			return err
		}
		defer mysqlDB.Close()
		log := logger.Log
		defer func() { _ = log.Sync() }()

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
		} else {
			log.Info("redis not configured, rate limiting disabled")
		}

		server := httpSrv.NewServer(cfg, mysqlDB, redisClient, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
				return err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(ctx)
	},
}
