package repl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/tordrt/socialgraph/internal/console"
	"github.com/tordrt/socialgraph/internal/db"
	"github.com/tordrt/socialgraph/internal/graph"
	"github.com/tordrt/socialgraph/internal/render"
	"github.com/tordrt/socialgraph/internal/schema"
	"github.com/tordrt/socialgraph/internal/verifier"
)

type fixture struct {
	in    *Interpreter
	ui    *console.Silent
	store *graph.Store
}

func newFixture(t *testing.T, answers []bool, opts ...Option) *fixture {
	return newFixtureWithStore(t, answers, nil, opts...)
}

func newFixtureWithStore(t *testing.T, answers []bool, storeOpts []graph.Option, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	client, err := db.NewSQLiteClient(ctx, filepath.Join(t.TempDir(), "repl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, verifier.New(client).Provision(ctx, schema.Default(), "", false))

	store := graph.New(client, storeOpts...)
	ui := console.NewSilent(answers...)
	return &fixture{in: New(store, ui, opts...), ui: ui, store: store}
}

func (f *fixture) nodeNames(t *testing.T) []string {
	t.Helper()
	nodes, err := f.store.ListNodes(context.Background(), f.in.session.File)
	require.NoError(t, err)
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

type fakeRenderer struct {
	calls []string
}

func (r *fakeRenderer) Render(_ context.Context, g render.Graph, path, prog string) error {
	r.calls = append(r.calls, g.Name+"|"+path+"|"+prog)
	return nil
}

func TestChainingMatchesSequentialInput(t *testing.T) {
	ctx := context.Background()

	chained := newFixture(t, nil)
	chained.in.Execute(ctx, "new Team; add X; add Y")

	sequential := newFixture(t, nil)
	for _, line := range []string{"new Team", "add X", "add Y"} {
		sequential.in.Execute(ctx, line)
	}

	require.Equal(t, []string{"X", "Y"}, chained.nodeNames(t))
	require.Equal(t, sequential.nodeNames(t), chained.nodeNames(t))
	require.Equal(t, sequential.ui.Messages(zapcore.InfoLevel), chained.ui.Messages(zapcore.InfoLevel))
}

func TestUnknownCommandWarnsAndContinues(t *testing.T) {
	f := newFixture(t, nil)
	f.in.Execute(context.Background(), "bogus arg; new Team")

	require.True(t, f.ui.Contains(zapcore.WarnLevel, "Unknown command"))
	require.NotNil(t, f.in.session.File)
	require.True(t, f.in.Running())
}

func TestDispatchIsCaseSensitive(t *testing.T) {
	f := newFixture(t, nil)
	f.in.Execute(context.Background(), "EXIT")
	require.True(t, f.in.Running())
	require.True(t, f.ui.Contains(zapcore.WarnLevel, "Unknown command"))
}

func TestExitStopsChain(t *testing.T) {
	for _, name := range []string{"exit", "quit", "q"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.in.Execute(context.Background(), name+"; new Team")
			require.False(t, f.in.Running())
			require.Nil(t, f.in.session.File)
		})
	}
}

func TestSeparatorOnlyLineIsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.in.Execute(context.Background(), ";")
	f.in.Execute(context.Background(), "; new Team")

	require.False(t, f.ui.Contains(zapcore.WarnLevel, "Unknown command"))
	require.Equal(t, "Team", f.in.session.File.Name)
}

func TestMalformedInputPrintsHelp(t *testing.T) {
	tests := []struct {
		line  string
		usage string
	}{
		{"connect Alice", "usage: connect"},
		{"connect -i 1 x", "usage: connect"},
		{"open", "usage: open"},
		{"open -i twelve", "usage: open"},
		{"add", "usage: add"},
		{"listnodes extra", "usage: listnodes"},
		{"export -a out yaml", "usage: export"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f := newFixture(t, nil)
			f.in.Execute(context.Background(), tt.line+"; new Team")
			require.Contains(t, f.ui.Output(), tt.usage)
			require.NotNil(t, f.in.session.File, "chain continues after help")
		})
	}
}

func TestOpenPromptsToCreate(t *testing.T) {
	ctx := context.Background()

	declined := newFixture(t, []bool{false})
	declined.in.Execute(ctx, "open Team A")
	require.Nil(t, declined.in.session.File)
	require.Equal(t, []string{`No file named "Team A". Create it?`}, declined.ui.Prompts)
	require.True(t, declined.ui.Contains(zapcore.WarnLevel, "NOT_FOUND"))

	accepted := newFixture(t, []bool{true})
	accepted.in.Execute(ctx, `open "Team A"; add Alice`)
	require.Equal(t, "Team A", accepted.in.session.File.Name)
	require.Equal(t, []string{"Alice"}, accepted.nodeNames(t))
	require.Equal(t, "social[Team A]>", accepted.in.Prompt())
}

func TestOpenVariants(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithStore(t, nil, []graph.Option{graph.WithIDSource(func() int64 { return 4242 })})

	f.in.Execute(ctx, "open -c Team")
	require.Empty(t, f.ui.Prompts)
	require.Equal(t, int64(4242), f.in.session.File.ID)

	f.in.Execute(ctx, "close; file")
	require.Nil(t, f.in.session.File)
	require.True(t, f.ui.Contains(zapcore.WarnLevel, "no file is open"))

	f.in.Execute(ctx, "open -i 4242; file")
	require.Equal(t, "Team", f.in.session.File.Name)
	require.Contains(t, f.ui.Output(), "Team (id 4242)")

	f.in.Execute(ctx, "open -i 1")
	require.True(t, f.ui.Contains(zapcore.WarnLevel, "no file with id 1"))
	require.Equal(t, "Team", f.in.session.File.Name, "a failed open keeps the current file")
}

func TestAddWithoutFileWarns(t *testing.T) {
	f := newFixture(t, nil)
	f.in.Execute(context.Background(), "add Alice")
	require.True(t, f.ui.Contains(zapcore.WarnLevel, "NO_OPEN_FILE"))
	require.Empty(t, f.ui.Messages(zapcore.ErrorLevel))
}

func TestConnectCommands(t *testing.T) {
	ctx := context.Background()
	ids := []int64{1, 100001, 200002, 300003, 9001, 9002, 9003}
	f := newFixtureWithStore(t, nil, []graph.Option{graph.WithIDSource(func() int64 {
		id := ids[0]
		ids = ids[1:]
		return id
	})})

	f.in.Execute(ctx, "new Team; add Sam Sam Alex")
	f.in.Execute(ctx, "connect Sam Alex")
	require.True(t, f.ui.Contains(zapcore.WarnLevel, "NODES_NOT_FOUND"))
	require.Contains(t, f.ui.Output(), `Nodes named "Sam":`)
	require.Contains(t, f.ui.Output(), "  Sam:1 (id 100001)")
	require.Contains(t, f.ui.Output(), "  Sam:2 (id 200002)")

	f.in.Execute(ctx, "connect Sam:1 Alex; connect Alex Sam:1; connect -i 200002 300003")
	require.True(t, f.ui.Contains(zapcore.WarnLevel, "DUPLICATE_CONNECTION"))

	conns, err := f.store.ListConnections(ctx, f.in.session.File)
	require.NoError(t, err)
	require.Len(t, conns, 2)

	f.in.Execute(ctx, "lc")
	require.Contains(t, f.ui.Output(), "Sam:1 -- Alex:3")
	require.Contains(t, f.ui.Output(), "Sam:2 -- Alex:3")
}

func TestListingCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.in.Execute(ctx, "new A; add Alice; new B; add Bob")
	f.in.Execute(ctx, "ln")
	out := f.ui.Output()
	require.Contains(t, out, "Bob:")
	require.NotContains(t, out, "Alice:")

	f.in.Execute(ctx, "lf; listfiles")
	require.Contains(t, f.ui.Output(), "* B (id ")
	require.Contains(t, f.ui.Output(), "  A (id ")

	f.in.Execute(ctx, "find Bob; find Zed")
	require.True(t, f.ui.Contains(zapcore.WarnLevel, `no node named "Zed"`))
}

func TestRenderCommand(t *testing.T) {
	ctx := context.Background()
	r := &fakeRenderer{}
	f := newFixture(t, nil, WithRenderer(r), WithRenderProg("neato"))

	f.in.Execute(ctx, "render")
	require.True(t, f.ui.Contains(zapcore.ErrorLevel, "Render failed"))
	require.Empty(t, r.calls)

	f.in.Execute(ctx, "new Team; add Alice; render; render out.svg dot")
	require.Equal(t, []string{"Team|Team.png|neato", "Team|out.svg|dot"}, r.calls)
}

func TestExportCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "team.md")

	f.in.Execute(ctx, "export "+path)
	require.True(t, f.ui.Contains(zapcore.WarnLevel, "NO_OPEN_FILE"))

	f.in.Execute(ctx, "new Team; add Alice Bob; connect Alice Bob; export '"+path+"'")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Team")
	require.Contains(t, string(data), "## Connections")

	all := filepath.Join(dir, "all")
	f.in.Execute(ctx, "export -a '"+all+"' text")
	entries, err := os.ReadDir(all)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestExportReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	f := newFixture(t, nil)

	f.in.Execute(context.Background(), "new Team; add Alice; export /dev/full")
	require.NotEmpty(t, f.ui.Messages(zapcore.ErrorLevel))
	require.False(t, f.ui.Contains(zapcore.InfoLevel, "Exported file"))
	require.True(t, f.in.Running())
}

func TestHelpCommand(t *testing.T) {
	f := newFixture(t, nil)
	f.in.Execute(context.Background(), "help")
	out := f.ui.Output()
	for _, usage := range []string{"open [-c] <name>", "connect <name[:disc]>", "listconnections", "render [path] [prog]", "exit"} {
		require.Contains(t, out, usage)
	}

	f.in.Execute(context.Background(), "? ln nothing")
	require.Contains(t, f.ui.Output(), "usage: listnodes")
	require.Contains(t, f.ui.Output(), "aliases: ln")
	require.True(t, f.ui.Contains(zapcore.WarnLevel, "No help"))
}

func TestRunReadsUntilEOF(t *testing.T) {
	f := newFixture(t, nil)
	f.ui.QueueLines("new Team", "add Alice; add Bob", "ln")

	require.NoError(t, f.in.Run(context.Background()))
	require.False(t, f.in.Running())
	require.Equal(t, []string{"Alice", "Bob"}, f.nodeNames(t))
}

func TestRunStopsAtExit(t *testing.T) {
	f := newFixture(t, nil)
	f.ui.QueueLines("new Team", "exit", "add Never")

	require.NoError(t, f.in.Run(context.Background()))
	require.Empty(t, f.nodeNames(t))
}

func TestHelpListsAliases(t *testing.T) {
	f := newFixture(t, nil)
	f.in.Execute(context.Background(), "?")
	require.Contains(t, f.ui.Output(), "Aliases: ? lc lf ln q quit\n")
	require.Equal(t, []string{"?", "lc", "lf", "ln", "q", "quit"}, f.in.aliases())
}
