package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
)

type MySQLOpts struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var (
	driverOnce sync.Once
	driverName string
	driverErr  error
)

var mysqlSystem = attribute.String("db.system", "mysql")

// instrumentedDriver registers the otelsql-wrapped mysql driver once per process.
func instrumentedDriver() (string, error) {
	driverOnce.Do(func() {
		driverName, driverErr = otelsql.Register("mysql",
			otelsql.AllowRoot(),
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(mysqlSystem),
		)
	})
	return driverName, driverErr
}

// normalizeDSN forces parseTime so DATETIME columns scan into time.Time.
func normalizeDSN(dsn string) (string, string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", "", fmt.Errorf("parse MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), cfg.DBName, nil
}

// NewMySQLConnection opens a *sqlx.DB with sensible pool/timeouts.
func NewMySQLConnection(dsn string, opts MySQLOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}
	dsn, dbName, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	name, err := instrumentedDriver()
	if err != nil {
		return nil, fmt.Errorf("register instrumented driver: %w", err)
	}

	sqlDB, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	// keep the mysql bind type; the wrapped driver name is unknown to sqlx
	db := sqlx.NewDb(sqlDB, "mysql")

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := otelsql.RecordStats(sqlDB,
		otelsql.WithSystem(mysqlSystem),
		otelsql.WithDatabaseName(dbName),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("record db stats: %w", err)
	}

	return db, nil
}

// IsDuplicateKey reports whether err is a MySQL unique-constraint violation (ER_DUP_ENTRY).
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}
