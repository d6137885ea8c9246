package db

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending goose migrations from the given directory.
// It opens a short-lived database/sql connection via the pgx stdlib driver;
// the pgxpool used for serving traffic is created separately.
func RunMigrations(databaseURL, dir string) error {
	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}

	sqlDB := sql.OpenDB(stdlib.GetConnector(*connConfig))
	defer sqlDB.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(sqlDB, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
