package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteClient opens a SQLite database file, creating it if needed
func NewSQLiteClient(ctx context.Context, path string) (*Client, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer; keeps :memory: databases on a single connection too.
	conn.SetMaxOpenConns(1)

	// Test the connection
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewClient(conn, DriverSQLite, ""), nil
}
