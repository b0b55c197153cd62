package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tordrt/socialgraph/internal/schema"
)

// SQLiteInspector reads table and column metadata from sqlite_master and
// PRAGMA table_info
type SQLiteInspector struct {
	client *Client
}

// NewSQLiteInspector creates a new SQLite catalog inspector
func NewSQLiteInspector(client *Client) *SQLiteInspector {
	return &SQLiteInspector{
		client: client,
	}
}

// TableNames returns every user table in the database
func (e *SQLiteInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

// Columns returns the columns of a table with their declared types
func (e *SQLiteInspector) Columns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", e.client.Dialect().Quote(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		columns = append(columns, schema.Column{
			Name: name,
			Type: colType,
		})
	}

	return columns, rows.Err()
}
