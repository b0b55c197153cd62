package db

import (
	"context"
	"fmt"

	"github.com/tordrt/socialgraph/internal/schema"
)

const varcharType = "varchar"

// PostgresInspector reads table and column metadata from information_schema
type PostgresInspector struct {
	client *Client
	schema string
}

// NewPostgresInspector creates a new catalog inspector
func NewPostgresInspector(client *Client, schemaName string) *PostgresInspector {
	if schemaName == "" {
		schemaName = "public"
	}
	return &PostgresInspector{
		client: client,
		schema: schemaName,
	}
}

// TableNames returns every base table in the schema
func (e *PostgresInspector) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schema)
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

// Columns returns the columns of a table. Type is information_schema's
// data_type; the shorter spellings accepted in DDL are carried as aliases.
func (e *PostgresInspector) Columns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.character_maximum_length
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var udtName string
		var charMaxLength *int

		if err := rows.Scan(&col.Name, &col.Type, &udtName, &charMaxLength); err != nil {
			return nil, err
		}

		col.Aliases = postgresAliases(col.Type, udtName, charMaxLength)
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func postgresAliases(dataType, udtName string, charMaxLength *int) []string {
	var aliases []string
	add := func(a string) {
		if a == "" || a == dataType {
			return
		}
		for _, existing := range aliases {
			if existing == a {
				return
			}
		}
		aliases = append(aliases, a)
	}

	add(normalizePostgresType(dataType, udtName, charMaxLength))
	add(udtName)
	add(normalizeUdtName(udtName))
	if dataType == "character varying" && charMaxLength != nil {
		add(fmt.Sprintf("character varying(%d)", *charMaxLength))
	}
	return aliases
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string, charMaxLength *int) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "time with time zone":
		return "timetz"
	case "time without time zone":
		return "time"
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("varchar(%d)", *charMaxLength)
		}
		return varcharType
	case "character":
		if charMaxLength != nil {
			return fmt.Sprintf("char(%d)", *charMaxLength)
		}
		return "char"
	case "ARRAY":
		// udt_name has underscore prefix for arrays (e.g., "_text" for text[], "_int4" for integer[])
		if len(udtName) > 0 && udtName[0] == '_' {
			elementType := normalizeUdtName(udtName[1:])
			return fmt.Sprintf("%s[]", elementType)
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to more readable forms
func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	case varcharType:
		return varcharType
	default:
		return udtName
	}
}
