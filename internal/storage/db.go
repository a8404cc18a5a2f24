// Package storage persists recipes, scraped sources, generation history,
// embeddings, and archived media.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	pq "github.com/lib/pq"

	"brewbook/internal/config"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const (
	pingTimeout = 10 * time.Second

	pqInvalidCatalog   = "3D000"
	pqDuplicateCatalog = "42P04"
	pqForeignKey       = "23503"
)

// Open connects to the configured database. A missing Postgres database is
// created when create_if_missing is set, and migrations run when auto_migrate is set.
func Open(ctx context.Context, cfg config.SQLConfig) (*sqlx.DB, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("sql config missing driver or dsn")
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	db, err := connect(pingCtx, cfg)
	if err != nil && cfg.CreateIfMissing && missingDatabase(cfg.Driver, err) {
		if cerr := createDatabase(pingCtx, cfg); cerr != nil {
			return nil, cerr
		}
		db, err = connect(pingCtx, cfg)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func connect(ctx context.Context, cfg config.SQLConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

func missingDatabase(driver string, err error) bool {
	if !strings.EqualFold(driver, "postgres") {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqInvalidCatalog
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}

// createDatabase connects to the maintenance database of the same server and issues CREATE DATABASE.
func createDatabase(ctx context.Context, cfg config.SQLConfig) error {
	dsn, err := url.Parse(cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	name := strings.TrimPrefix(dsn.Path, "/")
	switch {
	case name == "":
		return errors.New("dsn missing database name")
	case strings.EqualFold(name, "postgres"):
		return fmt.Errorf("refusing to create database %q", name)
	}
	dsn.Path = "/postgres"

	admin, err := connect(ctx, config.SQLConfig{Driver: cfg.Driver, DSN: dsn.String()})
	if err != nil {
		return fmt.Errorf("maintenance connection: %w", err)
	}
	defer admin.Close()

	_, err = admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqDuplicateCatalog {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create database %q: %w", name, err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps everything else.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
