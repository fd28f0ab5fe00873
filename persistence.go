package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	// DriverSQLite selects sqlite through bun's sqliteshim
	DriverSQLite = "sqlite"
	// DriverPostgres selects postgres through pgx
	DriverPostgres = "postgres"

	pgUniqueViolation = "23505"
)

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// OpenDB opens a bun handle for the given driver and dsn
func OpenDB(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		db := bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
		return db, nil
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenDBFromOptions opens the database described by opts
func OpenDBFromOptions(opts Options) (*bun.DB, error) {
	return OpenDB(opts.Database.Driver, opts.Database.DSN)
}

// Migrate applies the embedded migrations matching the handle's dialect
func Migrate(ctx context.Context, db *bun.DB) error {
	gooseDialect, dir, err := migrationTarget(db)
	if err != nil {
		return err
	}

	sub, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("run %s migrations: %w", dir, err)
	}
	return nil
}

func migrationTarget(db *bun.DB) (string, string, error) {
	switch db.Dialect().Name() {
	case dialect.SQLite:
		return "sqlite3", "sqlite", nil
	case dialect.PG:
		return "postgres", "postgres", nil
	default:
		return "", "", fmt.Errorf("no migrations for dialect %s", db.Dialect().Name())
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
