// Package db manages raw database connections, the SQL differences between
// the supported engines, and catalog inspection (which tables and columns
// exist).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/socialgraph/internal/schema"
)

// Driver names a supported database engine
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// ParseDriver maps a configuration value to a Driver
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	case "mysql":
		return DriverMySQL, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s (must be postgres, mysql or sqlite)", name)
	}
}

// Inspector reads the live catalog
type Inspector interface {
	// TableNames lists every base table of the client's namespace
	TableNames(ctx context.Context) ([]string, error)
	// Columns lists the columns of one table in ordinal order
	Columns(ctx context.Context, table string) ([]schema.Column, error)
}

// Client is a connection plus the dialect needed to talk to it
type Client struct {
	db        *sql.DB
	dialect   Dialect
	namespace string
}

// NewClient wraps an already opened *sql.DB. namespace is the Postgres
// schema or MySQL database whose tables are inspected; it is ignored for
// SQLite.
func NewClient(conn *sql.DB, driver Driver, namespace string) *Client {
	if driver == DriverPostgres && namespace == "" {
		namespace = "public"
	}
	return &Client{
		db:        conn,
		dialect:   Dialect{driver: driver},
		namespace: namespace,
	}
}

// Open connects to the given driver and pings it
func Open(ctx context.Context, driver Driver, dsn, namespace string) (*Client, error) {
	switch driver {
	case DriverPostgres:
		return NewPostgresClient(ctx, dsn, namespace)
	case DriverMySQL:
		return NewMySQLClient(ctx, dsn)
	case DriverSQLite:
		return NewSQLiteClient(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// GetDB returns the underlying database connection
func (c *Client) GetDB() *sql.DB {
	return c.db
}

// Dialect returns the SQL dialect of the connection
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// Namespace returns the inspected schema/database name
func (c *Client) Namespace() string {
	return c.namespace
}

// Inspector returns the catalog inspector for this connection
func (c *Client) Inspector() Inspector {
	switch c.dialect.driver {
	case DriverMySQL:
		return NewMySQLInspector(c, c.namespace)
	case DriverSQLite:
		return NewSQLiteInspector(c)
	default:
		return NewPostgresInspector(c, c.namespace)
	}
}

// Ping checks that the connection is still usable
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("database is not connected")
	}
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}
