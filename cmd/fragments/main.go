// Package main is the entry point for the fragments command line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/fragments/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitCollisions = 1
	exitPartial    = 2
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	workspace string
	config    string
	logLevel  string
	variant   string
	json      bool
	jsonLogs  bool
}

// exitCodeError carries a non-default exit code. A nil err means the
// command already reported what happened.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ec *exitCodeError
	if errors.As(err, &ec) {
		if ec.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ec.err)
		}
		return ec.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitError
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "fragments",
		Short: "Keep per-variant versions of marked regions in source files",
		Long: `fragments tracks regions delimited by

    // ==== YOUR CODE: @<id> ====
    ...
    // ==== END YOUR CODE ====

and stores their content per variant (for example "user" and
"maintainer"), so a tree can be switched between variants without
losing either side's edits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.workspace, "workspace", "w", "", "Workspace directory (default: git root of the current directory)")
	pf.StringVarP(&g.config, "config", "c", "", "Path to an extra configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.variant, "variant", "", "Use this variant for one command without persisting it")
	pf.BoolVar(&g.json, "json", false, "Print machine-readable output")
	pf.BoolVar(&g.jsonLogs, "json-logs", false, "Write log lines as JSON")

	root.AddCommand(
		newScanCommand(g),
		newCaptureCommand(g),
		newApplyCommand(g),
		newToggleCommand(g),
		newStatusCommand(g),
		newCheckCommand(g),
		newInsertCommand(g),
		newDeleteCommand(g),
		newForgetCommand(g),
		newShowCommand(g),
		newImportLegacyCommand(g),
		newWatchCommand(g),
		newRunCommand(g),
		newHookCommand(g),
		newVersionCommand(),
	)
	return root
}

// openApp bootstraps the workspace for one command.
func openApp(cmd *cobra.Command, g *globalFlags) (*app.Application, error) {
	return app.New(cmd.Context(), app.Options{
		WorkspacePath: g.workspace,
		ConfigPath:    g.config,
		LogLevel:      g.logLevel,
		LogOutput:     cmd.ErrOrStderr(),
		JSONLogs:      g.jsonLogs,
		Variant:       g.variant,
	})
}

// withApp opens the workspace, runs fn and closes the workspace.
func withApp(g *globalFlags, fn func(cmd *cobra.Command, a *app.Application, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, g)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fragments %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
