package persistence

import (
	"context"
	"database/sql"
	"fmt"

	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Open connects to the configured database, applies the embedded
// migrations and returns a bun handle ready for the users store.
func Open(ctx context.Context, cfg config.Persistence) (*bun.DB, error) {
	var (
		sqldb   *sql.DB
		db      *bun.DB
		dialect string
		err     error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		sqldb, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
		dialect = "pgx"
	case config.DriverSQLite, "":
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		// a single connection keeps in memory databases alive and shared
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
		dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported persistence driver %q", cfg.Driver)
	}

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := signup.Migrate(ctx, sqldb, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return db, nil
}
