// Package render draws the open file's graph with Graphviz.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tordrt/socialgraph/internal/graph"
)

// DefaultProg is the Graphviz layout program used when none is configured
const DefaultProg = "circo"

// Status is the outcome of a render request
type Status int

const (
	Success Status = iota
	NotConnected
	NoFile
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case NotConnected:
		return "not connected"
	case NoFile:
		return "no file open"
	default:
		return "failed"
	}
}

// Source supplies the graph of a file
type Source interface {
	Connected(ctx context.Context) bool
	ListNodes(ctx context.Context, file *graph.File) ([]graph.Node, error)
	ListConnections(ctx context.Context, file *graph.File) ([]graph.Connection, error)
}

// Graph is what gets drawn: labelled nodes and undirected edges
type Graph struct {
	Name        string
	Nodes       []graph.Node
	Connections []graph.Connection
}

// Renderer writes a graph image to path
type Renderer interface {
	Render(ctx context.Context, g Graph, path string, prog string) error
}

// Draw collects file's graph from src and hands it to r
func Draw(ctx context.Context, src Source, r Renderer, file *graph.File, path, prog string) (Status, error) {
	if !src.Connected(ctx) {
		return NotConnected, fmt.Errorf("cannot render while the database is disconnected")
	}
	if file == nil {
		return NoFile, fmt.Errorf("cannot render when no file is open")
	}

	nodes, err := src.ListNodes(ctx, file)
	if err != nil {
		return Failed, fmt.Errorf("failed to list nodes: %w", err)
	}
	conns, err := src.ListConnections(ctx, file)
	if err != nil {
		return Failed, fmt.Errorf("failed to list connections: %w", err)
	}

	if path == "" {
		path = DefaultPath(file)
	}
	if err := r.Render(ctx, Graph{Name: file.Name, Nodes: nodes, Connections: conns}, path, prog); err != nil {
		return Failed, err
	}
	return Success, nil
}

// DefaultPath derives an output file name from the file's name
func DefaultPath(file *graph.File) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, file.Name)
	if name == "" {
		name = "graph"
	}
	return name + ".png"
}

// DOT renders g in the Graphviz language. Nodes are keyed by id and
// labelled by name.
func DOT(g Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s {\n", strconv.Quote(g.Name))
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "  %s [label=%s];\n", strconv.Quote(strconv.FormatInt(n.ID, 10)), strconv.Quote(n.Name))
	}
	for _, c := range g.Connections {
		fmt.Fprintf(&b, "  %s -- %s;\n",
			strconv.Quote(strconv.FormatInt(c.FirstID, 10)),
			strconv.Quote(strconv.FormatInt(c.SecondID, 10)))
	}
	b.WriteString("}\n")
	return b.String()
}

// Graphviz renders through the Graphviz command line tools
type Graphviz struct {
	// Prog is the layout program, DefaultProg when empty
	Prog string
}

// Render writes g to path. A .dot path receives the DOT source itself;
// any other extension selects the output format of the layout program.
func (gv Graphviz) Render(ctx context.Context, g Graph, path, prog string) error {
	source := DOT(g)

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "dot" || ext == "gv" {
		if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	}
	if ext == "" {
		ext = "png"
	}

	if prog == "" {
		prog = gv.Prog
	}
	if prog == "" {
		prog = DefaultProg
	}

	cmd := exec.CommandContext(ctx, prog, "-T"+ext, "-o", path)
	cmd.Stdin = strings.NewReader(source)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run %s: %w: %s", prog, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
