package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lumos/internal/device"
	"lumos/internal/logger"
	"lumos/internal/runner"
)

// App carries the process collaborators of one CLI run. Tests swap any of
// them for fakes and call Run in-process.
type App struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	Getenv  func(string) string
	Invoker runner.Invoker
	Serial  device.Serial
}

// NewApp returns an App wired to the real process environment.
func NewApp() *App {
	return &App{
		In:      os.Stdin,
		Out:     os.Stdout,
		ErrOut:  os.Stderr,
		Getenv:  os.Getenv,
		Invoker: runner.ExecInvoker{},
		Serial:  device.SystemSerial{},
	}
}

// globals holds the values of the persistent flags and what is derived from
// them before any subcommand runs.
type globals struct {
	// debug toggles debug logging, set via the `--debug` flag.
	debug bool
	// dir is the project root, set via `-C/--directory`; empty means the
	// working directory.
	dir string

	root string
	log  *logger.Logger
}

// addGlobalFlags registers the flags shared by every subcommand.
func addGlobalFlags(fs *pflag.FlagSet, g *globals) {
	fs.BoolVar(&g.debug, "debug", false, "Enable debug logging")
	fs.StringVarP(&g.dir, "directory", "C", "", "Project directory (default: current directory)")
}

// newRootCmd builds the `lumos` command tree for one run.
func (a *App) newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "lumos",
		Short:         "STM32 build tool",
		SilenceUsage:  true,
		SilenceErrors: true,

		// PersistentPreRunE runs before any subcommand: it resolves the project
		// root once and builds the logger from cobra's output streams.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			g.log = logger.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), g.debug)

			dir := g.dir
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to determine working directory: %w", err)
				}
				dir = wd
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", dir, err)
			}
			g.root = abs
			g.log.Debug("[DEBUG] project root: %s\n", g.root)
			return nil
		},
	}

	addGlobalFlags(root.PersistentFlags(), g)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf(err.Error())
	})
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		printUsage(cmd.OutOrStdout())
	})
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		a.initCmd(g),
		a.buildCmd(g),
		a.flashCmd(g),
		a.monitorCmd(g),
		a.resetCmd(g),
		a.portsCmd(g),
	)
	return root
}

// Run executes one CLI invocation and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	route, token := Classify(args)
	switch route {
	case RouteHelp:
		printUsage(a.Out)
		return ExitOK
	case RouteVersion:
		printVersion(a.Out)
		return ExitOK
	case RouteUnknown:
		fmt.Fprintf(a.ErrOut, "Error: Unknown command '%s'\n\n", token)
		printUsage(a.ErrOut)
		return ExitUsage
	}

	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.ErrOut)

	err := root.ExecuteContext(ctx)
	code := exitCode(ctx, err)
	log := logger.New(a.Out, a.ErrOut, false)
	switch code {
	case ExitInterrupted:
		log.Error("\nInterrupted\n")
	case ExitUsage:
		log.Error("Error: %v\n", err)
		fmt.Fprintf(a.ErrOut, "Run 'lumos --help' for usage.\n")
	case ExitFailure:
		log.Error("Error: %v\n", err)
	}
	return code
}

// Execute runs the CLI against the real process and returns its exit code.
// SIGINT and SIGTERM cancel the run's context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewApp().Run(ctx, os.Args[1:])
}
