package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// NewMySQLClient opens a MySQL connection. The inspected database is the one
// named in the DSN.
func NewMySQLClient(ctx context.Context, connString string) (*Client, error) {
	dbName, err := ParseDatabaseName(connString)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open("mysql", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewClient(conn, DriverMySQL, dbName), nil
}

// ParseDatabaseName extracts the database name from a MySQL DSN
func ParseDatabaseName(connString string) (string, error) {
	cfg, err := mysql.ParseDSN(connString)
	if err != nil {
		return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("MySQL DSN does not name a database")
	}
	return cfg.DBName, nil
}

// MySQLDSN builds a DSN for the go-sql-driver/mysql driver
func MySQLDSN(user, password, host string, port int, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = dbName
	return cfg.FormatDSN()
}
