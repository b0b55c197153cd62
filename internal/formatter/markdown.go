package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/socialgraph/internal/graph"
)

// MarkdownFormatter formats a file's graph as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatGraph writes the nodes and connections of file
func (f *MarkdownFormatter) FormatGraph(file graph.File, nodes []graph.Node, conns []graph.Connection) error {
	_, _ = fmt.Fprintf(f.writer, "# %s\n\n", file.Name)
	_, _ = fmt.Fprintf(f.writer, "File id: %d\n\n", file.ID)

	_, _ = fmt.Fprintln(f.writer, "## Nodes")
	_, _ = fmt.Fprintln(f.writer)
	if len(nodes) == 0 {
		_, _ = fmt.Fprintln(f.writer, "_none_")
	}
	for _, n := range nodes {
		_, _ = fmt.Fprintf(f.writer, "- **%s:** discriminator %d, id %d\n", n.Name, n.Discriminator(), n.ID)
	}
	_, _ = fmt.Fprintln(f.writer)

	_, _ = fmt.Fprintln(f.writer, "## Connections")
	_, _ = fmt.Fprintln(f.writer)
	if len(conns) == 0 {
		_, _ = fmt.Fprintln(f.writer, "_none_")
	}
	labels := labelIndex(nodes)
	for _, c := range conns {
		_, _ = fmt.Fprintf(f.writer, "- %s ↔ %s\n", labels.of(c.FirstID), labels.of(c.SecondID))
	}

	return nil
}
