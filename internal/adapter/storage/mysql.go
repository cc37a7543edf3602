package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/rl1809/allocation/internal/port"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errDuplicateEntry  = 1062
)

//go:embed migrations/*.sql
var migrations embed.FS

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenMySQL opens a pool with the settings used by every process.
func OpenMySQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// WaitForMySQL pings db with exponential backoff until it answers or
// maxElapsed passes.
func WaitForMySQL(ctx context.Context, db *sql.DB, maxElapsed time.Duration, logger *zap.Logger) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	err := backoff.RetryNotify(
		func() error { return db.PingContext(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			logger.Warn("mysql not ready", zap.Error(err), zap.Duration("retry_in", next))
		},
	)
	if err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// classify maps lock conflicts reported by MySQL to port.ErrConcurrencyConflict.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errLockWaitTimeout, errDeadlock, errDuplicateEntry:
			return fmt.Errorf("%w: %v", port.ErrConcurrencyConflict, err)
		}
	}
	return err
}
