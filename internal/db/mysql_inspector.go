package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/socialgraph/internal/schema"
)

// MySQLInspector reads table and column metadata from information_schema
type MySQLInspector struct {
	client     *Client
	schemaName string
}

// NewMySQLInspector creates a new MySQL catalog inspector
func NewMySQLInspector(client *Client, schemaName string) *MySQLInspector {
	return &MySQLInspector{
		client:     client,
		schemaName: schemaName,
	}
}

// TableNames returns every base table in the database
func (e *MySQLInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// Columns returns the columns of a table. Type is data_type (e.g. "bigint");
// column_type (e.g. "bigint(20)", "varchar(64)") is kept as an alias.
func (e *MySQLInspector) Columns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.column_type
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var columnType string

		if err := rows.Scan(&col.Name, &col.Type, &columnType); err != nil {
			return nil, err
		}

		if columnType != "" && !strings.EqualFold(columnType, col.Type) {
			col.Aliases = []string{columnType}
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}
