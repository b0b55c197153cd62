package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/socialgraph/internal/graph"
)

const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// FileGraph is one file with its nodes and connections
type FileGraph struct {
	File        graph.File
	Nodes       []graph.Node
	Connections []graph.Connection
}

// MultiFileFormatter writes every file's graph to its own document in a
// directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the overview and one document per file
func (f *MultiFileFormatter) Format(graphs []FileGraph) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(graphs); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, g := range graphs {
		if err := f.writeGraphFile(g); err != nil {
			return fmt.Errorf("failed to write document for %s: %w", g.File.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(graphs []FileGraph) (err error) {
	filename := filepath.Join(f.OutputDir, "_overview"+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer closeFile(file, &err)

	sorted := make([]FileGraph, len(graphs))
	copy(sorted, graphs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].File.Name != sorted[j].File.Name {
			return sorted[i].File.Name < sorted[j].File.Name
		}
		return sorted[i].File.ID < sorted[j].File.ID
	})

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(file, "# Files\n\n")
		for _, g := range sorted {
			_, _ = fmt.Fprintf(file, "- **%s** (`%s`): %d nodes, %d connections\n",
				g.File.Name, f.DocumentName(g.File), len(g.Nodes), len(g.Connections))
		}
		return nil
	}

	_, _ = fmt.Fprintf(file, "FILES\n")
	for _, g := range sorted {
		_, _ = fmt.Fprintf(file, "%s %s nodes=%d connections=%d\n",
			g.File.Name, f.DocumentName(g.File), len(g.Nodes), len(g.Connections))
	}
	return nil
}

func (f *MultiFileFormatter) writeGraphFile(g FileGraph) (err error) {
	filename := filepath.Join(f.OutputDir, f.DocumentName(g.File))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer closeFile(file, &err)

	if f.OutputFormat == FormatMarkdown {
		return NewMarkdownFormatter(file).FormatGraph(g.File, g.Nodes, g.Connections)
	}

	text := NewTextFormatter(file)
	_, _ = fmt.Fprintf(file, "FILE %s (id %d)\n\nNODES\n", g.File.Name, g.File.ID)
	if err := text.FormatNodes(g.Nodes); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(file, "\nCONNECTIONS\n")
	return text.FormatConnections(g.Connections, g.Nodes)
}

// DocumentName returns the document name of a file. The id keeps files
// that share a name apart.
func (f *MultiFileFormatter) DocumentName(file graph.File) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r < ' ' {
			return '_'
		}
		return r
	}, file.Name)
	return fmt.Sprintf("%s-%d%s", name, file.ID, f.getFileExtension())
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}

// closeFile closes file and reports the close error unless err is already set
func closeFile(file *os.File, err *error) {
	if cerr := file.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close %s: %w", file.Name(), cerr)
	}
}
