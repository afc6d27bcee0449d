package migrations

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

// Run applies every migration for the database's driver.
func Run(dbx *sqlx.DB) error {
	var (
		dir      string
		name     string
		instance database.Driver
		err      error
	)
	switch dbx.DriverName() {
	case "sqlite":
		dir, name = "sqlite", "sqlite3"
		instance, err = sqlite.WithInstance(dbx.DB, &sqlite.Config{})
	case "pgx":
		dir, name = "postgres", "pgx5"
		instance, err = pgx.WithInstance(dbx.DB, &pgx.Config{})
	default:
		return fmt.Errorf("no migrations for driver %q", dbx.DriverName())
	}
	if err != nil {
		return fmt.Errorf("error creating %s instance for migration: %s", name, err)
	}

	d, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("error creating migrations source: %s", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", d, name, instance)
	if err != nil {
		return fmt.Errorf("error creating migrator: %s", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("error migrating: %s", err)
	}
	slog.Info("migrated", "driver", dbx.DriverName())

	return nil
}
