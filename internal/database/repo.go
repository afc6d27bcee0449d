// Package database stores articles, the moderation queue and run reports in
// sqlite or Postgres.
package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/jdholdren/newsroom/internal/newsroom"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const (
	articleNamespace    = "-art"
	moderationNamespace = "-mod"
)

var _ newsroom.Repository = (*Repo)(nil)

type Repo struct {
	db  *sqlx.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

func New(db *sqlx.DB) Repo {
	sb := sq.StatementBuilder
	if db.DriverName() == DriverPostgres {
		sb = sb.PlaceholderFormat(sq.Dollar)
	}

	return Repo{
		db:  db,
		sb:  sb,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Open connects to the database at dsn. postgres:// urls go through pgx,
// anything else is taken as a sqlite path.
func Open(dsn string) (*sqlx.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dbx, err := sqlx.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("error opening postgres: %s", err)
		}
		return dbx, nil
	}

	if dsn == ":memory:" {
		dbx, err := sqlx.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("error opening sqlite: %s", err)
		}
		// Every connection would get its own empty database otherwise
		dbx.SetMaxOpenConns(1)
		return dbx, nil
	}

	dbx, err := sqlx.Open(DriverSQLite, fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn))
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite: %s", err)
	}

	return dbx, nil
}

// Unique constraint violations in either driver.
func isConflict(err error) bool {
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) {
		// SQLITE_CONSTRAINT_UNIQUE, SQLITE_CONSTRAINT_PRIMARYKEY
		return sqliteErr.Code() == 2067 || sqliteErr.Code() == 1555
	}
	if pgErr := (&pgconn.PgError{}); errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return false
}
