// Package schema holds the expected table layout (the schema description
// document) and the live table snapshots the verifier compares it against.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/socialgraph/internal/apperr"
)

//go:embed default.json
var defaultDescription []byte

// Default returns the built-in description of the files, nodes and
// connections tables.
func Default() Description {
	d, err := Parse(defaultDescription, ".json")
	if err != nil {
		panic(fmt.Sprintf("embedded schema description is invalid: %v", err))
	}
	return d
}

// Load reads a description from path. The format is picked by extension:
// .yaml/.yml for YAML, anything else is read as JSON.
func Load(path string) (Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to read schema description")
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes and validates a description
func Parse(data []byte, ext string) (Description, error) {
	var d Description
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to parse schema description")
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to parse schema description")
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate rejects descriptions that would produce invalid DDL
func (d Description) Validate() error {
	if len(d) == 0 {
		return apperr.New(apperr.CodeConfig, "schema description declares no tables")
	}

	tables := make(map[string]bool, len(d))
	for i, t := range d {
		if strings.TrimSpace(t.Name) == "" {
			return apperr.Newf(apperr.CodeConfig, "table #%d has no name", i+1)
		}
		if tables[t.Name] {
			return apperr.Newf(apperr.CodeConfig, "table %s is declared twice", t.Name).
				WithContext(apperr.CtxTable, t.Name)
		}
		tables[t.Name] = true

		if len(t.Columns) == 0 {
			return apperr.Newf(apperr.CodeConfig, "table %s has no columns", t.Name).
				WithContext(apperr.CtxTable, t.Name)
		}

		columns := make(map[string]bool, len(t.Columns))
		for j, c := range t.Columns {
			if strings.TrimSpace(c.Name) == "" {
				return apperr.Newf(apperr.CodeConfig, "column #%d of table %s has no name", j+1, t.Name).
					WithContext(apperr.CtxTable, t.Name)
			}
			if strings.TrimSpace(c.Type) == "" {
				return apperr.Newf(apperr.CodeConfig, "column %s.%s has no type", t.Name, c.Name).
					WithContext(apperr.CtxTable, t.Name)
			}
			if columns[c.Name] {
				return apperr.Newf(apperr.CodeConfig, "column %s.%s is declared twice", t.Name, c.Name).
					WithContext(apperr.CtxTable, t.Name)
			}
			columns[c.Name] = true
		}
	}
	return nil
}

// RequireTables checks that every named table is declared with the given
// columns. Used by components that issue queries against fixed layouts.
func (d Description) RequireTables(required map[string][]string) error {
	for table, cols := range required {
		t, ok := d.Lookup(table)
		if !ok {
			return apperr.Newf(apperr.CodeConfig, "schema description is missing table %s", table).
				WithContext(apperr.CtxTable, table)
		}
		for _, col := range cols {
			if _, ok := t.Column(col); !ok {
				return apperr.Newf(apperr.CodeConfig, "schema description is missing column %s.%s", table, col).
					WithContext(apperr.CtxTable, table)
			}
		}
	}
	return nil
}
