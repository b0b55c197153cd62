// Package verifier compares the expected table layout with the live database
// and provisions the tables that are missing.
package verifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tordrt/socialgraph/internal/apperr"
	"github.com/tordrt/socialgraph/internal/db"
	"github.com/tordrt/socialgraph/internal/schema"
)

// Status is the drift classification of a database
type Status string

const (
	StatusOK      Status = "OK"
	StatusEmpty   Status = "EMPTY"
	StatusPartial Status = "PARTIAL"
	StatusCorrupt Status = "CORRUPT"
)

// ProblemKind names one kind of drift found in a table
type ProblemKind string

const (
	ProblemMissingTable     ProblemKind = "missing table"
	ProblemColumnCount      ProblemKind = "column count"
	ProblemUnexpectedColumn ProblemKind = "unexpected column"
	ProblemTypeConflict     ProblemKind = "type conflict"
	ProblemMissingColumn    ProblemKind = "missing column"
)

// Problem is one divergence between a table and its descriptor
type Problem struct {
	Kind   ProblemKind
	Column string
	Detail string
}

func (p Problem) String() string {
	if p.Detail == "" {
		return string(p.Kind)
	}
	return string(p.Kind) + ": " + p.Detail
}

// TableReport is the result of checking one expected table
type TableReport struct {
	// Name is the prefixed table name
	Name     string
	Present  bool
	Problems []Problem
}

// Mismatch reports whether the table exists but does not follow its descriptor
func (t TableReport) Mismatch() bool {
	for _, p := range t.Problems {
		if p.Kind != ProblemMissingTable {
			return true
		}
	}
	return false
}

// Report is the outcome of Check
type Report struct {
	Status Status
	Tables []TableReport
	// Existing lists every base table found in the namespace
	Existing []string
}

// Missing returns the names of the expected tables that do not exist
func (r *Report) Missing() []string {
	var names []string
	for _, t := range r.Tables {
		if !t.Present {
			names = append(names, t.Name)
		}
	}
	return names
}

// Classify derives the status from per-table results. A mismatch anywhere
// wins over missing tables.
func Classify(tables []TableReport) Status {
	present := 0
	for _, t := range tables {
		if t.Mismatch() {
			return StatusCorrupt
		}
		if t.Present {
			present++
		}
	}
	switch {
	case present == 0:
		return StatusEmpty
	case present < len(tables):
		return StatusPartial
	default:
		return StatusOK
	}
}

// Verifier checks and provisions the tables of one connection
type Verifier struct {
	client    *db.Client
	inspector db.Inspector
	logger    *zap.Logger
}

// Option configures a Verifier
type Option func(*Verifier)

// WithLogger sets the logger used for statement tracing
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// New creates a verifier for client
func New(client *db.Client, opts ...Option) *Verifier {
	v := &Verifier{
		client:    client,
		inspector: client.Inspector(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check compares desc, with prefix prepended to every table name, against
// the live namespace.
func (v *Verifier) Check(ctx context.Context, desc schema.Description, prefix string) (*Report, error) {
	existing, err := v.inspector.TableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	report := &Report{Existing: existing}
	for _, td := range desc {
		name := prefix + td.Name
		tr := TableReport{Name: name, Present: present[name]}

		if !tr.Present {
			tr.Problems = append(tr.Problems, Problem{Kind: ProblemMissingTable, Detail: name})
			report.Tables = append(report.Tables, tr)
			continue
		}

		columns, err := v.inspector.Columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read columns of %s: %w", name, err)
		}
		tr.Problems = compareColumns(td, columns)
		report.Tables = append(report.Tables, tr)
	}

	report.Status = Classify(report.Tables)
	v.logger.Debug("table check finished",
		zap.String("namespace", v.client.Namespace()),
		zap.String("status", string(report.Status)),
		zap.Int("tables", len(report.Tables)),
		zap.Int("existing", len(existing)))
	return report, nil
}

func compareColumns(td schema.TableDescriptor, actual []schema.Column) []Problem {
	var problems []Problem

	if len(actual) != len(td.Columns) {
		problems = append(problems, Problem{
			Kind:   ProblemColumnCount,
			Detail: fmt.Sprintf("expected %d columns, found %d", len(td.Columns), len(actual)),
		})
	}

	seen := make(map[string]bool, len(actual))
	for _, col := range actual {
		seen[col.Name] = true
		want, ok := td.Column(col.Name)
		if !ok {
			problems = append(problems, Problem{
				Kind:   ProblemUnexpectedColumn,
				Column: col.Name,
				Detail: fmt.Sprintf("%s of type %s", col.Name, col.Type),
			})
			continue
		}
		if !col.Matches(want.Type) {
			problems = append(problems, Problem{
				Kind:   ProblemTypeConflict,
				Column: col.Name,
				Detail: fmt.Sprintf("%s should be %s but is %s", col.Name, want.Type, col.Type),
			})
		}
	}

	for _, want := range td.Columns {
		if !seen[want.Name] {
			problems = append(problems, Problem{
				Kind:   ProblemMissingColumn,
				Column: want.Name,
				Detail: want.Name,
			})
		}
	}
	return problems
}

// Provision creates every table of desc that does not exist yet. With
// dropExisting every base table of the namespace is dropped first; the drops
// and the creates share one transaction. Existing tables are never altered.
func (v *Verifier) Provision(ctx context.Context, desc schema.Description, prefix string, dropExisting bool) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	existing, err := v.inspector.TableNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	var statements []string
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		if dropExisting {
			statements = append(statements, DropTableSQL(v.client.Dialect(), name))
		} else {
			present[name] = true
		}
	}

	for _, td := range desc {
		name := prefix + td.Name
		if present[name] {
			continue
		}
		statements = append(statements, CreateTableSQL(v.client.Dialect(), name, td))
	}

	if err := v.execInTx(ctx, statements); err != nil {
		return fmt.Errorf("failed to provision tables: %w", err)
	}
	return nil
}

func (v *Verifier) execInTx(ctx context.Context, statements []string) error {
	if len(statements) == 0 {
		return nil
	}

	tx, err := v.client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		v.logger.Debug("executing", zap.String("sql", stmt))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// CreateTableSQL renders the CREATE TABLE statement for a descriptor
func CreateTableSQL(d db.Dialect, name string, td schema.TableDescriptor) string {
	parts := make([]string, 0, len(td.Columns)+1)
	for _, c := range td.Columns {
		parts = append(parts, d.Quote(c.Name)+" "+c.Type)
	}
	if pk := td.PrimaryKey(); len(pk) > 0 {
		quoted := make([]string, len(pk))
		for i, col := range pk {
			quoted[i] = d.Quote(col)
		}
		parts = append(parts, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(name), strings.Join(parts, ", "))
}

// DropTableSQL renders the DROP TABLE statement for a table. Postgres drops
// dependent objects too.
func DropTableSQL(d db.Dialect, name string) string {
	stmt := "DROP TABLE IF EXISTS " + d.Quote(name)
	if d.Driver() == db.DriverPostgres {
		stmt += " CASCADE"
	}
	return stmt
}

// Err returns the SchemaDrift error describing a report that is not OK
func (r *Report) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	var details []string
	for _, t := range r.Tables {
		for _, p := range t.Problems {
			details = append(details, t.Name+": "+p.String())
		}
	}
	msg := "database is " + strings.ToLower(string(r.Status))
	if len(details) > 0 {
		msg += " (" + strings.Join(details, "; ") + ")"
	}
	return apperr.New(apperr.CodeSchemaDrift, msg)
}
