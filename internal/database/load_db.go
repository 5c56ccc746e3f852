package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const (
	MySQL  = "mysql"
	SQLite = "sqlite3"
)

type Migrator interface {
	Migrate(ctx context.Context) error
}

// LoadDB opens and pings a database for one of the supported drivers.
func LoadDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != MySQL && driver != SQLite {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == SQLite {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot connect to DB: %w", err)
	}
	return db, nil
}

func Migrate(ctx context.Context, migrators ...Migrator) error {
	for _, m := range migrators {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("cannot create tables: %w", err)
		}
	}
	return nil
}

// AutoIncrement is the id column keyword of the driver's SQL dialect.
func AutoIncrement(driver string) string {
	if driver == SQLite {
		return "AUTOINCREMENT"
	}
	return "AUTO_INCREMENT"
}
