package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/socialgraph/internal/graph"
	"github.com/tordrt/socialgraph/internal/schema"
	"github.com/tordrt/socialgraph/internal/verifier"
)

// TextFormatter formats reports and listings as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// FormatReport writes a drift report, one block per expected table
func (f *TextFormatter) FormatReport(r *verifier.Report) error {
	_, _ = fmt.Fprintf(f.writer, "STATUS %s\n", r.Status)

	for _, table := range r.Tables {
		state := "OK"
		switch {
		case !table.Present:
			state = "MISSING"
		case table.Mismatch():
			state = "MISMATCH"
		}
		_, _ = fmt.Fprintf(f.writer, "TABLE %s %s\n", table.Name, state)

		for _, p := range table.Problems {
			if p.Kind == verifier.ProblemMissingTable {
				continue
			}
			_, _ = fmt.Fprintf(f.writer, "  %s\n", p)
		}
	}
	return nil
}

// FormatDescription writes the expected layout with prefixed table names
func (f *TextFormatter) FormatDescription(d schema.Description, prefix string) error {
	for i, table := range d {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}

		pkStr := ""
		if pk := table.PrimaryKey(); len(pk) > 0 {
			pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(pk, ", "))
		}
		_, _ = fmt.Fprintf(f.writer, "TABLE %s%s%s\n", prefix, table.Name, pkStr)

		for _, col := range table.Columns {
			_, _ = fmt.Fprintf(f.writer, "  %s: %s\n", col.Name, col.Type)
		}
	}
	return nil
}

// FormatFiles lists files, marking the open one with an asterisk
func (f *TextFormatter) FormatFiles(files []graph.File, open *graph.File) error {
	if len(files) == 0 {
		_, _ = fmt.Fprintln(f.writer, "(no files)")
		return nil
	}
	for _, file := range files {
		marker := " "
		if open != nil && open.ID == file.ID {
			marker = "*"
		}
		_, _ = fmt.Fprintf(f.writer, "%s %s (id %d)\n", marker, file.Name, file.ID)
	}
	return nil
}

// FormatNodes lists nodes as name:discriminator with their ids
func (f *TextFormatter) FormatNodes(nodes []graph.Node) error {
	if len(nodes) == 0 {
		_, _ = fmt.Fprintln(f.writer, "(no nodes)")
		return nil
	}
	for _, n := range nodes {
		_, _ = fmt.Fprintf(f.writer, "  %s (id %d)\n", n.Label(), n.ID)
	}
	return nil
}

// FormatConnections lists connections by endpoint label. nodes resolves ids
// to labels; unknown ids are printed as is.
func (f *TextFormatter) FormatConnections(conns []graph.Connection, nodes []graph.Node) error {
	if len(conns) == 0 {
		_, _ = fmt.Fprintln(f.writer, "(no connections)")
		return nil
	}

	labels := labelIndex(nodes)
	for _, c := range conns {
		_, _ = fmt.Fprintf(f.writer, "  %s -- %s (id %d)\n", labels.of(c.FirstID), labels.of(c.SecondID), c.ID)
	}
	return nil
}

type labels map[int64]string

func labelIndex(nodes []graph.Node) labels {
	idx := make(labels, len(nodes))
	for _, n := range nodes {
		idx[n.ID] = n.Label()
	}
	return idx
}

func (l labels) of(id int64) string {
	if label, ok := l[id]; ok {
		return label
	}
	return fmt.Sprintf("#%d", id)
}
