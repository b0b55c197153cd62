package schema

import "strings"

// Description is the ordered list of tables the database is expected to hold
type Description []TableDescriptor

// TableDescriptor describes one expected table
type TableDescriptor struct {
	Name    string             `json:"name" yaml:"name"`
	Columns []ColumnDescriptor `json:"schema" yaml:"schema"`
}

// ColumnDescriptor describes one expected column
type ColumnDescriptor struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Primary bool   `json:"primary,omitempty" yaml:"primary,omitempty"`
}

// Table is a live table as reported by the database catalog
type Table struct {
	Name    string
	Columns []Column
}

// Column is a live column as reported by the database catalog
type Column struct {
	Name string
	Type string
	// Aliases holds alternative spellings of Type (e.g. varchar(64) for
	// "character varying")
	Aliases []string
}

// Lookup returns the descriptor for the table with the given unprefixed name
func (d Description) Lookup(name string) (TableDescriptor, bool) {
	for _, t := range d {
		if t.Name == name {
			return t, true
		}
	}
	return TableDescriptor{}, false
}

// Column returns the descriptor of the named column
func (t TableDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// PrimaryKey returns the names of the columns flagged as primary
func (t TableDescriptor) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.Primary {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// Matches reports whether the live column's type matches typ, ignoring case
func (c Column) Matches(typ string) bool {
	if strings.EqualFold(c.Type, typ) {
		return true
	}
	for _, alias := range c.Aliases {
		if strings.EqualFold(alias, typ) {
			return true
		}
	}
	return false
}
