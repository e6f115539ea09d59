// Package pg is the optional Postgres-backed alternative to the NDJSON
// file tracing store, selected when the gateway runs in managed mode
// (a real Postgres DSN configured via NANOBRIDGE_POSTGRES_DSN).
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB opens a connection pool to dsn using the pgx stdlib driver, with
// pool limits sized for a single gateway process rather than a shared
// connection pooler in front of many instances.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return db, nil
}
