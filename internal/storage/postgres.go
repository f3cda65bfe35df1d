// Package storage owns the Postgres connection, the schema, and translation
// of driver errors into storage sentinels.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"boxinator/internal/platform/config"
	"boxinator/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqAdminShutdown       = "57P01"
	pqTooManyConnections  = "53300"

	// pqConnectionClass covers every connection exception code.
	pqConnectionClass = "08"
)

// Open connects to Postgres via lib/pq and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// MapError translates driver errors into storage sentinels. Unique
// violations become sentinel.ErrAlreadyUsed; missing rows become
// sentinel.ErrNotFound. Lost or refused connections become
// sentinel.ErrUnavailable. Anything else is returned wrapped with op.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w (%s)", op, sentinel.ErrAlreadyUsed, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", op, sentinel.ErrInvalidState, pqErr.Constraint)
		case pqAdminShutdown, pqTooManyConnections:
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
		}
		if pqErr.Code.Class() == pqConnectionClass {
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
		}
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
