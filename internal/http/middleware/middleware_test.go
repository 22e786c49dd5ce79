package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddleware_DisabledPassesThrough(t *testing.T) {
	cases := map[string]RateLimitConfig{
		"no redis": {RPS: 1},
		"no rps":   {Redis: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})},
	}

	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.GET("/", okHandler, RateLimitMiddleware(cfg))

			for i := 0; i < 5; i++ {
				assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/").Code)
			}
		})
	}
}

func TestRateLimitMiddleware_RedisDownFailsOpen(t *testing.T) {
	rds := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rds.Close() })

	e := echo.New()
	e.GET("/", okHandler, RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 1}))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/").Code)
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	e := echo.New()
	e.Use(AccessLog(zap.New(core)))
	e.GET("/customers", okHandler)

	rec := serve(e, http.MethodGet, "/customers?page=2")
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/customers?page=2", fields["uri"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestAccessLog_RecordsHandlerErrors(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	e := echo.New()
	e.Use(AccessLog(zap.New(core)))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	rec := serve(e, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusTeapot, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, http.StatusTeapot, entries[0].ContextMap()["status"])
}
