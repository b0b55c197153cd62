package repl

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tordrt/socialgraph/internal/apperr"
	"github.com/tordrt/socialgraph/internal/formatter"
	"github.com/tordrt/socialgraph/internal/graph"
	"github.com/tordrt/socialgraph/internal/render"
)

func builtinCommands() []*command {
	return []*command{
		{
			name:    "open",
			usage:   "open [-c] <name> | open -i <id>",
			summary: "open a file by name (-c creates it when missing) or by id",
			run:     runOpen,
		},
		{
			name:    "new",
			usage:   "new <name>",
			summary: "create a file and open it",
			run:     runNew,
		},
		{
			name:    "close",
			usage:   "close",
			summary: "close the open file",
			run:     runClose,
		},
		{
			name:    "file",
			usage:   "file",
			summary: "show the open file",
			run:     runFile,
		},
		{
			name:    "add",
			usage:   "add <name...>",
			summary: "add one node per name to the open file",
			run:     runAdd,
		},
		{
			name:    "connect",
			usage:   "connect <name[:disc]> <name[:disc]> | connect -i <id> <id>",
			summary: "connect two nodes of the open file",
			run:     runConnect,
		},
		{
			name:    "find",
			usage:   "find <name[:disc]>",
			summary: "show the nodes with a name",
			run:     runFind,
		},
		{
			name:    "listnodes",
			aliases: []string{"ln"},
			usage:   "listnodes",
			summary: "list the nodes of the open file, or of every file",
			run:     runListNodes,
		},
		{
			name:    "listconnections",
			aliases: []string{"lc"},
			usage:   "listconnections",
			summary: "list the connections of the open file, or of every file",
			run:     runListConnections,
		},
		{
			name:    "listfiles",
			aliases: []string{"lf"},
			usage:   "listfiles",
			summary: "list every file",
			run:     runListFiles,
		},
		{
			name:    "render",
			usage:   "render [path] [prog]",
			summary: "draw the open file with Graphviz (.dot writes the source)",
			run:     runRender,
		},
		{
			name:    "export",
			usage:   "export <path> | export -a <dir> [markdown|text]",
			summary: "write the open file, or every file, as a document",
			run:     runExport,
		},
		{
			name:    "help",
			aliases: []string{"?"},
			usage:   "help [command...]",
			summary: "show help",
			run:     runHelp,
		},
		{
			name:    "exit",
			aliases: []string{"quit", "q"},
			usage:   "exit",
			summary: "end the session",
			run:     runExit,
		},
	}
}

func runOpen(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	var (
		file *graph.File
		err  error
	)
	switch args[0] {
	case "-i":
		if len(args) != 2 {
			return errUsage
		}
		id, perr := strconv.ParseInt(args[1], 10, 64)
		if perr != nil {
			return errUsage
		}
		file, err = in.store.OpenFileByID(ctx, id)
	case "-c":
		if len(args) < 2 {
			return errUsage
		}
		file, err = in.store.OpenFileByName(ctx, strings.Join(args[1:], " "), true)
	default:
		name := strings.Join(args, " ")
		file, err = in.store.OpenFileByName(ctx, name, false)
		if apperr.IsCode(err, apperr.CodeNotFound) && in.ui.Confirm(fmt.Sprintf("No file named %q. Create it?", name), false) {
			file, err = in.store.CreateFile(ctx, name)
		}
	}
	if err != nil {
		return err
	}

	in.session.File = file
	in.ui.Info("Opened file", zap.String("name", file.Name), zap.Int64("id", file.ID))
	return nil
}

func runNew(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	file, err := in.store.CreateFile(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	in.session.File = file
	in.ui.Info("Created file", zap.String("name", file.Name), zap.Int64("id", file.ID))
	return nil
}

func runClose(_ context.Context, in *Interpreter, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if in.session.File == nil {
		return apperr.New(apperr.CodeNoOpenFile, "no file is open")
	}
	in.ui.Info("Closed file", zap.String("name", in.session.File.Name))
	in.session.File = nil
	return nil
}

func runFile(_ context.Context, in *Interpreter, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if in.session.File == nil {
		return apperr.New(apperr.CodeNoOpenFile, "no file is open")
	}
	_, _ = fmt.Fprintf(in.ui.Out(), "%s (id %d)\n", in.session.File.Name, in.session.File.ID)
	return nil
}

func runAdd(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, name := range args {
		node, err := in.store.AddNode(ctx, in.session.File, name)
		if err != nil {
			return err
		}
		in.ui.Info("Added node", zap.String("node", node.Label()), zap.Int64("id", node.ID))
	}
	return nil
}

func runConnect(ctx context.Context, in *Interpreter, args []string) error {
	var (
		conn *graph.Connection
		err  error
	)
	switch {
	case len(args) == 3 && args[0] == "-i":
		a, aerr := strconv.ParseInt(args[1], 10, 64)
		b, berr := strconv.ParseInt(args[2], 10, 64)
		if aerr != nil || berr != nil {
			return errUsage
		}
		conn, err = in.store.ConnectByID(ctx, in.session.File, a, b)
	case len(args) == 2 && args[0] != "-i":
		conn, err = in.store.Connect(ctx, in.session.File, graph.ParseNodeRef(args[0]), graph.ParseNodeRef(args[1]))
	default:
		return errUsage
	}
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNameConflict) {
			in.showCandidates(ctx, err)
		}
		return err
	}

	in.ui.Info("Connected nodes",
		zap.Int64("first", conn.FirstID),
		zap.Int64("second", conn.SecondID),
		zap.Int64("id", conn.ID))
	return nil
}

// showCandidates lists the nodes sharing the name a NameConflict is about
func (in *Interpreter) showCandidates(ctx context.Context, err error) {
	v, ok := apperr.ContextValue(err, apperr.CtxName)
	name, isString := v.(string)
	if !ok || !isString {
		return
	}
	nodes, lerr := in.store.NodesNamed(ctx, in.session.File, name)
	if lerr != nil || len(nodes) == 0 {
		return
	}
	_, _ = fmt.Fprintf(in.ui.Out(), "Nodes named %q:\n", name)
	_ = formatter.NewTextFormatter(in.ui.Out()).FormatNodes(nodes)
}

func runFind(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	ref := graph.ParseNodeRef(args[0])
	var nodes []graph.Node
	if ref.HasDiscriminator {
		node, err := in.store.LookupNode(ctx, in.session.File, ref)
		if err != nil {
			if apperr.HasCode(err, apperr.CodeNameConflict) {
				in.showCandidates(ctx, err)
			}
			return err
		}
		nodes = []graph.Node{*node}
	} else {
		found, err := in.store.NodesNamed(ctx, in.session.File, ref.Name)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return apperr.Newf(apperr.CodeNotFound, "no node named %q", ref.Name)
		}
		nodes = found
	}
	return formatter.NewTextFormatter(in.ui.Out()).FormatNodes(nodes)
}

func runListNodes(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	nodes, err := in.store.ListNodes(ctx, in.session.File)
	if err != nil {
		return err
	}
	return formatter.NewTextFormatter(in.ui.Out()).FormatNodes(nodes)
}

func runListConnections(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	conns, err := in.store.ListConnections(ctx, in.session.File)
	if err != nil {
		return err
	}
	nodes, err := in.store.ListNodes(ctx, in.session.File)
	if err != nil {
		return err
	}
	return formatter.NewTextFormatter(in.ui.Out()).FormatConnections(conns, nodes)
}

func runListFiles(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	files, err := in.store.ListFiles(ctx)
	if err != nil {
		return err
	}
	return formatter.NewTextFormatter(in.ui.Out()).FormatFiles(files, in.session.File)
}

func runRender(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) > 2 {
		return errUsage
	}
	var path, prog string
	if len(args) > 0 {
		path = args[0]
	}
	prog = in.prog
	if len(args) > 1 {
		prog = args[1]
	}
	if path == "" && in.session.File != nil {
		path = render.DefaultPath(in.session.File)
	}

	status, err := render.Draw(ctx, in.store, in.renderer, in.session.File, path, prog)
	if status != render.Success {
		in.ui.Error("Render failed", zap.String("status", status.String()), zap.Error(err))
		return nil
	}
	in.ui.Info("Rendered graph", zap.String("path", path), zap.String("prog", prog))
	return nil
}

func runExport(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if args[0] == "-a" {
		return exportAll(ctx, in, args[1:])
	}
	if len(args) != 1 {
		return errUsage
	}

	file := in.session.File
	if file == nil {
		return apperr.New(apperr.CodeNoOpenFile, "open a file before exporting")
	}
	nodes, err := in.store.ListNodes(ctx, file)
	if err != nil {
		return err
	}
	conns, err := in.store.ListConnections(ctx, file)
	if err != nil {
		return err
	}

	if err := writeExport(args[0], *file, nodes, conns); err != nil {
		return err
	}
	in.ui.Info("Exported file", zap.String("name", file.Name), zap.String("path", args[0]))
	return nil
}

func writeExport(path string, file graph.File, nodes []graph.Node, conns []graph.Connection) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(out)
	if err := formatter.NewMarkdownFormatter(w).FormatGraph(file, nodes, conns); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func exportAll(ctx context.Context, in *Interpreter, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errUsage
	}
	format := formatter.FormatMarkdown
	if len(args) == 2 {
		format = args[1]
	}
	if format != formatter.FormatMarkdown && format != formatter.FormatText {
		return errUsage
	}

	files, err := in.store.ListFiles(ctx)
	if err != nil {
		return err
	}
	graphs := make([]formatter.FileGraph, 0, len(files))
	for i := range files {
		nodes, err := in.store.ListNodes(ctx, &files[i])
		if err != nil {
			return err
		}
		conns, err := in.store.ListConnections(ctx, &files[i])
		if err != nil {
			return err
		}
		graphs = append(graphs, formatter.FileGraph{File: files[i], Nodes: nodes, Connections: conns})
	}

	if err := formatter.NewMultiFileFormatter(args[0], format).Format(graphs); err != nil {
		return err
	}
	in.ui.Info("Exported files", zap.Int("count", len(graphs)), zap.String("dir", args[0]))
	return nil
}

func runHelp(_ context.Context, in *Interpreter, args []string) error {
	if len(args) == 0 {
		in.printOverview()
		return nil
	}
	for _, topic := range args {
		cmd, ok := in.commands[topic]
		if !ok {
			in.ui.Warn("No help for unknown command", zap.String("command", topic))
			continue
		}
		in.printHelp(cmd)
	}
	return nil
}

func runExit(_ context.Context, in *Interpreter, _ []string) error {
	in.session.Running = false
	return nil
}
