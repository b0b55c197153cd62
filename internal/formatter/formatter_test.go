package formatter

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tordrt/socialgraph/internal/graph"
	"github.com/tordrt/socialgraph/internal/schema"
	"github.com/tordrt/socialgraph/internal/verifier"
)

var (
	team  = graph.File{Name: "Team A", ID: 42}
	nodes = []graph.Node{
		{Name: "Alice", ID: 100001, FileID: 42},
		{Name: "Bob", ID: -200002, FileID: 42},
	}
	conns = []graph.Connection{{FirstID: 100001, SecondID: -200002, ID: 9, FileID: 42}}
)

func TestFormatReport(t *testing.T) {
	report := &verifier.Report{
		Status: verifier.StatusCorrupt,
		Tables: []verifier.TableReport{
			{Name: "sg_files", Present: true},
			{Name: "sg_nodes", Problems: []verifier.Problem{{Kind: verifier.ProblemMissingTable, Detail: "sg_nodes"}}},
			{Name: "sg_connections", Present: true, Problems: []verifier.Problem{
				{Kind: verifier.ProblemTypeConflict, Column: "first_id", Detail: "first_id should be bigint but is text"},
			}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).FormatReport(report))

	want := "STATUS CORRUPT\n" +
		"TABLE sg_files OK\n" +
		"TABLE sg_nodes MISSING\n" +
		"TABLE sg_connections MISMATCH\n" +
		"  type conflict: first_id should be bigint but is text\n"
	require.Equal(t, want, buf.String())
}

func TestFormatDescription(t *testing.T) {
	var buf bytes.Buffer
	files, _ := schema.Default().Lookup("files")
	require.NoError(t, NewTextFormatter(&buf).FormatDescription(schema.Description{files}, "p_"))
	require.Equal(t, "TABLE p_files (PK: id)\n  name: text\n  id: bigint\n", buf.String())
}

func TestFormatListings(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(&buf)

	require.NoError(t, f.FormatFiles([]graph.File{team, {Name: "Other", ID: 7}}, &team))
	require.NoError(t, f.FormatNodes(nodes))
	require.NoError(t, f.FormatConnections(append(conns, graph.Connection{FirstID: 1, SecondID: 100001, ID: 10}), nodes))

	got := buf.String()
	require.Contains(t, got, "* Team A (id 42)\n")
	require.Contains(t, got, "  Other (id 7)\n")
	require.Contains(t, got, "  Alice:1 (id 100001)\n")
	require.Contains(t, got, "  Bob:2 (id -200002)\n")
	require.Contains(t, got, "  Alice:1 -- Bob:2 (id 9)\n")
	require.Contains(t, got, "  #1 -- Alice:1 (id 10)\n")
}

func TestFormatEmptyListings(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(&buf)
	require.NoError(t, f.FormatFiles(nil, nil))
	require.NoError(t, f.FormatNodes(nil))
	require.NoError(t, f.FormatConnections(nil, nil))
	require.Equal(t, "(no files)\n(no nodes)\n(no connections)\n", buf.String())
}

func TestFormatGraphMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).FormatGraph(team, nodes, conns))

	got := buf.String()
	require.Contains(t, got, "# Team A\n")
	require.Contains(t, got, "- **Alice:** discriminator 1, id 100001\n")
	require.Contains(t, got, "- Alice:1 ↔ Bob:2\n")
}

func TestMultiFileFormatter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	graphs := []FileGraph{
		{File: team, Nodes: nodes, Connections: conns},
		{File: graph.File{Name: "a/b", ID: 3}},
	}

	f := NewMultiFileFormatter(dir, FormatMarkdown)
	require.NoError(t, f.Format(graphs))

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.md"))
	require.NoError(t, err)
	require.Contains(t, string(overview), "- **Team A** (`Team A-42.md`): 2 nodes, 1 connections")

	doc, err := os.ReadFile(filepath.Join(dir, "a_b-3.md"))
	require.NoError(t, err)
	require.Contains(t, string(doc), "# a/b")

	text := NewMultiFileFormatter(dir, FormatText)
	require.NoError(t, text.Format(graphs))
	doc, err = os.ReadFile(filepath.Join(dir, "Team A-42.txt"))
	require.NoError(t, err)
	require.Contains(t, string(doc), "Alice:1 -- Bob:2")
}

func TestCloseFileReportsError(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "doc.md"))
	require.NoError(t, err)
	require.NoError(t, file.Close())

	var result error
	closeFile(file, &result)
	require.ErrorIs(t, result, os.ErrClosed)

	first := errors.New("write failed")
	result = first
	closeFile(file, &result)
	require.Same(t, first, result)
}
