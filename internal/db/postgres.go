package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresClient opens a PostgreSQL connection through pgx.
// schemaName defaults to "public".
func NewPostgresClient(ctx context.Context, connString, schemaName string) (*Client, error) {
	conn, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewClient(conn, DriverPostgres, schemaName), nil
}
