package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// openStore opens the verse/token store for driver ("postgres" or
// "sqlite3") against dsn.
func openStore(driver, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("--dsn (or DATABASE_URL) is required")
	}
	switch driver {
	case "postgres", "sqlite3", "sqlite":
		if driver == "sqlite" {
			driver = "sqlite3"
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q: want postgres or sqlite3", driver)
	}
	return sqlx.Open(driver, dsn)
}
