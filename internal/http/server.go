package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/customers-api/internal/config"
	"github.com/jmehdipour/customers-api/internal/http/middleware"
	"github.com/jmehdipour/customers-api/internal/repository"
	"github.com/jmehdipour/customers-api/internal/service/customers"
	"github.com/jmehdipour/customers-api/internal/util"
	"github.com/jmehdipour/customers-api/internal/validation"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, mysqlDB *sqlx.DB, rds *redis.Client, logger *zap.Logger) *Server {
	// repos (MySQL)
	customersRepo := repository.NewCustomersRepository(mysqlDB, nil)

	// services
	customerSvc := customers.New(mysqlDB, customersRepo)

	e := newEcho(logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := mysqlDB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, message("database unavailable"))
		}
		return c.String(http.StatusOK, "ok")
	})

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	g := e.Group("/customers", rlMW)
	registerCustomerRoutes(g, newCustomerHandler(customerSvc, validation.New(), logger))

	return &Server{e: e, log: logger}
}

// newEcho builds the bare echo instance with the middleware shared by every route.
func newEcho(logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.Use(
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: util.NewRequestID}),
		middleware.AccessLog(logger),
		echoMid.Recover(),
	)
	return e
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
