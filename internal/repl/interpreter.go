// Package repl reads command lines, splits chained commands and dispatches
// them against the graph store.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tordrt/socialgraph/internal/apperr"
	"github.com/tordrt/socialgraph/internal/console"
	"github.com/tordrt/socialgraph/internal/graph"
	"github.com/tordrt/socialgraph/internal/render"
)

// Session is the state of one interactive session. Only the open and exit
// commands change it.
type Session struct {
	File    *graph.File
	Running bool
}

// errUsage makes the dispatcher print the command's help text
var errUsage = errors.New("malformed command")

type handler func(ctx context.Context, in *Interpreter, args []string) error

type command struct {
	name    string
	aliases []string
	usage   string
	summary string
	run     handler
}

// Interpreter dispatches commands for one session
type Interpreter struct {
	store    *graph.Store
	ui       console.UI
	renderer render.Renderer
	prog     string
	session  *Session

	commands map[string]*command
	ordered  []*command
}

// Option configures an Interpreter
type Option func(*Interpreter)

// WithRenderer replaces the Graphviz renderer
func WithRenderer(r render.Renderer) Option {
	return func(in *Interpreter) { in.renderer = r }
}

// WithRenderProg sets the default Graphviz layout program
func WithRenderProg(prog string) Option {
	return func(in *Interpreter) { in.prog = prog }
}

// New creates an interpreter with a fresh, running session
func New(store *graph.Store, ui console.UI, opts ...Option) *Interpreter {
	in := &Interpreter{
		store:    store,
		ui:       ui,
		renderer: render.Graphviz{},
		prog:     render.DefaultProg,
		session:  &Session{Running: true},
		commands: make(map[string]*command),
	}
	for _, opt := range opts {
		opt(in)
	}
	for _, cmd := range builtinCommands() {
		in.register(cmd)
	}
	return in
}

func (in *Interpreter) register(cmd *command) {
	in.ordered = append(in.ordered, cmd)
	in.commands[cmd.name] = cmd
	for _, alias := range cmd.aliases {
		in.commands[alias] = cmd
	}
}

// Running reports whether the session continues
func (in *Interpreter) Running() bool {
	return in.session.Running
}

// Prompt returns the input prompt, naming the open file
func (in *Interpreter) Prompt() string {
	if in.session.File == nil {
		return "social>"
	}
	return fmt.Sprintf("social[%s]>", in.session.File.Name)
}

// Execute runs every chained command of line in order. It stops early when
// a command ends the session.
func (in *Interpreter) Execute(ctx context.Context, line string) {
	for rest := strings.TrimSpace(line); rest != "" && in.session.Running; {
		cmd := Parse(rest)
		rest = cmd.Carryover
		if cmd.Core == "" {
			continue
		}
		in.dispatch(ctx, cmd)
	}
}

// Run reads and executes lines until exit or the end of input
func (in *Interpreter) Run(ctx context.Context) error {
	for in.session.Running {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := in.ui.ReadLine(in.Prompt())
		if errors.Is(err, io.EOF) {
			in.session.Running = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		in.Execute(ctx, line)
	}
	return nil
}

func (in *Interpreter) dispatch(ctx context.Context, c Command) {
	cmd, ok := in.commands[c.Core]
	if !ok {
		in.ui.Warn("Unknown command, type help for a list", zap.String("command", c.Core))
		return
	}

	in.ui.Debug("dispatching", zap.String("command", cmd.name), zap.Strings("args", c.Args))
	err := cmd.run(ctx, in, c.Args)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		in.printHelp(cmd)
	case apperr.Recoverable(err):
		in.ui.Warn(err.Error())
	default:
		in.ui.Error(err.Error(), zap.String("command", cmd.name))
	}
}

func (in *Interpreter) printHelp(cmd *command) {
	out := in.ui.Out()
	_, _ = fmt.Fprintf(out, "usage: %s\n  %s\n", cmd.usage, cmd.summary)
	if len(cmd.aliases) > 0 {
		_, _ = fmt.Fprintf(out, "  aliases: %s\n", strings.Join(cmd.aliases, ", "))
	}
}

func (in *Interpreter) printOverview() {
	out := in.ui.Out()
	_, _ = fmt.Fprintln(out, "Commands (chain with ;):")

	width := 0
	for _, cmd := range in.ordered {
		if len(cmd.usage) > width {
			width = len(cmd.usage)
		}
	}
	for _, cmd := range in.ordered {
		_, _ = fmt.Fprintf(out, "  %-*s  %s\n", width, cmd.usage, cmd.summary)
	}
	_, _ = fmt.Fprintf(out, "Aliases: %s\n", strings.Join(in.aliases(), " "))
}

// aliases returns every alias, sorted
func (in *Interpreter) aliases() []string {
	names := make([]string, 0, len(in.commands))
	for name, cmd := range in.commands {
		if name != cmd.name {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
