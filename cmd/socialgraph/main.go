package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tordrt/socialgraph/internal/config"
	"github.com/tordrt/socialgraph/internal/console"
	"github.com/tordrt/socialgraph/internal/db"
	"github.com/tordrt/socialgraph/internal/formatter"
	"github.com/tordrt/socialgraph/internal/graph"
	"github.com/tordrt/socialgraph/internal/repl"
	"github.com/tordrt/socialgraph/internal/schema"
	"github.com/tordrt/socialgraph/internal/verifier"
)

type cliOptions struct {
	configPath  string
	commandLine string
	verbose     bool
	noColor     bool
	drop        bool
	yes         bool
	showSchema  bool
	writePath   string
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "socialgraph",
		Short: "Store and query relationship graphs in a SQL database",
		Long: `socialgraph keeps people and the connections between them in PostgreSQL,
MySQL or SQLite tables. It checks the tables against the expected layout on
startup, offers to create them, and then reads commands interactively.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), cmd.Flags(), opts, in, out)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "Configuration file")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: postgres, mysql or sqlite (overrides db_driver)")
	rootCmd.PersistentFlags().String("prefix", "", "Table name prefix (overrides table_prefix)")
	rootCmd.PersistentFlags().String("schema", "", "Schema description file, JSON or YAML (overrides schema_file)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write every message to this file (overrides log_file)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show debug messages")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().StringVarP(&opts.commandLine, "command", "c", "", "Run a chained command line and exit")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the database tables with the expected layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.Flags(), opts, in, out)
		},
	}
	checkCmd.Flags().BoolVar(&opts.showSchema, "show-schema", false, "Also print the expected layout")

	provisionCmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the missing tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd.Context(), cmd.Flags(), opts, in, out)
		},
	}
	provisionCmd.Flags().BoolVar(&opts.drop, "drop", false, "Drop every existing table first (DANGEROUS)")
	provisionCmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask before dropping tables")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after environment and flag overrides, with the
password masked. --write stores it, unknown keys included, in a new file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd.Flags(), opts, out)
		},
	}
	configCmd.Flags().StringVar(&opts.writePath, "write", "", "Write the effective configuration to this file")

	rootCmd.AddCommand(checkCmd, provisionCmd, configCmd)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	return rootCmd
}

// app is everything a command needs once configuration is loaded and the
// database is reachable
type app struct {
	cfg      *config.Config
	ui       *console.Console
	client   *db.Client
	desc     schema.Description
	verifier *verifier.Verifier
}

func newApp(ctx context.Context, flags *pflag.FlagSet, opts *cliOptions, in io.Reader, out io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath, flags)
	if err != nil {
		return nil, err
	}

	level, err := console.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		level = zapcore.DebugLevel
	}
	uiOpts := []console.Option{console.WithLevel(level), console.WithColor(!opts.noColor)}
	if cfg.LogFile != "" {
		uiOpts = append(uiOpts, console.WithLogFile(cfg.LogFile))
	}
	ui := console.New(in, out, uiOpts...)

	desc := schema.Default()
	if cfg.SchemaFile != "" {
		desc, err = schema.Load(cfg.SchemaFile)
		if err != nil {
			_ = ui.Close()
			return nil, err
		}
	}
	if err := desc.RequireTables(graph.RequiredTables); err != nil {
		_ = ui.Close()
		return nil, err
	}

	ui.Info("Connecting to " + cfg.Describe())
	client, err := db.Open(ctx, cfg.Driver(), cfg.DSN(), cfg.DBSchema)
	if err != nil {
		ui.Severe("Could not connect to the database", zap.Error(err))
		_ = ui.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &app{
		cfg:      cfg,
		ui:       ui,
		client:   client,
		desc:     desc,
		verifier: verifier.New(client, verifier.WithLogger(ui.Logger())),
	}, nil
}

func (a *app) Close() {
	if err := a.client.Close(); err != nil {
		a.ui.Warn("failed to close database connection", zap.Error(err))
	}
	_ = a.ui.Close()
}

func runSession(ctx context.Context, flags *pflag.FlagSet, opts *cliOptions, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, flags, opts, in, out)
	if err != nil {
		return err
	}
	defer a.Close()

	lifecycle := verifier.NewLifecycle(a.verifier, a.ui, a.desc, a.cfg.TablePrefix)
	if err := lifecycle.Connect(ctx); err != nil {
		if report := lifecycle.Report(); report != nil && report.Status != verifier.StatusOK {
			_ = formatter.NewTextFormatter(out).FormatReport(report)
		}
		a.ui.Severe("Fatal error!", zap.String("state", string(lifecycle.State())))
		return err
	}
	a.ui.Debug("session ready", zap.String("state", string(lifecycle.State())))

	store := graph.New(a.client,
		graph.WithPrefix(a.cfg.TablePrefix),
		graph.WithLogger(a.ui.Logger()))
	interp := repl.New(store, a.ui, repl.WithRenderProg(a.cfg.RenderProg))

	if opts.commandLine != "" {
		interp.Execute(ctx, opts.commandLine)
		return nil
	}
	return interp.Run(ctx)
}

func runCheck(ctx context.Context, flags *pflag.FlagSet, opts *cliOptions, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, flags, opts, in, out)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.verifier.Check(ctx, a.desc, a.cfg.TablePrefix)
	if err != nil {
		return err
	}

	text := formatter.NewTextFormatter(out)
	if err := text.FormatReport(report); err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	if opts.showSchema {
		_, _ = fmt.Fprintln(out)
		if err := text.FormatDescription(a.desc, a.cfg.TablePrefix); err != nil {
			return fmt.Errorf("failed to format schema: %w", err)
		}
	}
	return report.Err()
}

func runProvision(ctx context.Context, flags *pflag.FlagSet, opts *cliOptions, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, flags, opts, in, out)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.drop && !opts.yes {
		if !a.ui.Confirm("Delete every existing table in "+a.cfg.Describe()+"?", false) {
			a.ui.Warn("Provisioning cancelled")
			return nil
		}
	}

	if err := a.verifier.Provision(ctx, a.desc, a.cfg.TablePrefix, opts.drop); err != nil {
		return err
	}

	report, err := a.verifier.Check(ctx, a.desc, a.cfg.TablePrefix)
	if err != nil {
		return err
	}
	if err := formatter.NewTextFormatter(out).FormatReport(report); err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	return report.Err()
}

func runConfig(flags *pflag.FlagSet, opts *cliOptions, out io.Writer) error {
	cfg, err := config.Load(opts.configPath, flags)
	if err != nil {
		return err
	}

	settings := cfg.Settings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := settings[k]
		if k == "db_password" && v != "" {
			v = "********"
		}
		_, _ = fmt.Fprintf(out, "%s = %v\n", k, v)
	}

	if opts.writePath != "" {
		if err := cfg.Save(opts.writePath); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote %s\n", opts.writePath)
	}
	return nil
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
