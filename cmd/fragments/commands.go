package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/fragments/internal/app"
	"github.com/dshills/fragments/internal/fragment/engine"
	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/plugin"
	"github.com/dshills/fragments/internal/plugin/api"
	"github.com/dshills/fragments/internal/plugin/lua"
	"github.com/dshills/fragments/internal/project"
)

func newScanCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Index the workspace and list the fragments of each file",
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			reports, err := a.Scan(cmd.Context(), args...)
			if g.json {
				if jerr := printJSON(cmd.OutOrStdout(), reports); jerr != nil {
					return jerr
				}
				return err
			}
			out := cmd.OutOrStdout()
			for _, rep := range reports {
				if len(rep.IDs) > 0 {
					fmt.Fprintf(out, "%s: %s\n", rep.File, strings.Join(rep.IDs, ", "))
				}
			}
			printSkipped(cmd.ErrOrStderr(), reports)
			return err
		}),
	}
}

func newCaptureCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "capture [paths...]",
		Short: "Save every fragment under the active variant",
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			reports, err := a.Capture(cmd.Context(), "", args...)
			if perr := reportSync(cmd, g, reports, err, func(reports []app.FileReport) string {
				saved := count(reports, func(r app.FileReport) int { return len(r.Saved) })
				return fmt.Sprintf("captured %d fragments under %s", saved, a.Workspace().Variant())
			}); perr != nil {
				return perr
			}
			return syncExit(err)
		}),
	}
}

func newApplyCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <variant> [paths...]",
		Short: "Rewrite fragments to a variant and make it active",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			reports, err := a.Apply(cmd.Context(), args[0], args[1:]...)
			if errors.Is(err, engine.ErrUnknownVariant) {
				return fmt.Errorf("%w (known: %s)", err, strings.Join(a.Workspace().Variants(), ", "))
			}
			if perr := reportSync(cmd, g, reports, err, func(reports []app.FileReport) string {
				return applySummary(a, reports)
			}); perr != nil {
				return perr
			}
			return syncExit(err)
		}),
	}
}

func newToggleCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [paths...]",
		Short: "Capture the active variant, then apply the next one",
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			_, reports, err := a.Toggle(cmd.Context(), args...)
			if errors.Is(err, app.ErrCaptureIncomplete) {
				printFailures(cmd.ErrOrStderr(), reports)
				return &exitCodeError{code: exitPartial, err: err}
			}
			if perr := reportSync(cmd, g, reports, err, func(reports []app.FileReport) string {
				return applySummary(a, reports)
			}); perr != nil {
				return perr
			}
			return syncExit(err)
		}),
	}
}

func applySummary(a *app.Application, reports []app.FileReport) string {
	changed := count(reports, func(r app.FileReport) int {
		if r.Changed {
			return 1
		}
		return 0
	})
	return fmt.Sprintf("%s: %d files rewritten", a.Workspace().Label(), changed)
}

// reportSync prints the outcome of a capture or apply.
func reportSync(cmd *cobra.Command, g *globalFlags, reports []app.FileReport, err error, summary func([]app.FileReport) string) error {
	if g.json {
		return printJSON(cmd.OutOrStdout(), reports)
	}
	printSkipped(cmd.ErrOrStderr(), reports)
	printFailures(cmd.ErrOrStderr(), reports)
	if err == nil || errors.Is(err, engine.ErrPartial) {
		fmt.Fprintln(cmd.OutOrStdout(), summary(reports))
	}
	return nil
}

// syncExit maps partial failures to their exit code.
func syncExit(err error) error {
	if err != nil && errors.Is(err, engine.ErrPartial) {
		return &exitCodeError{code: exitPartial, err: err}
	}
	return err
}

func newStatusCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active variant and fragment counts",
		Args:  cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, _ []string) error {
			st, err := a.Status(cmd.Context())
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), st)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, st.Label)
			fmt.Fprintf(out, "root:       %s\n", st.Root)
			fmt.Fprintf(out, "variants:   %s\n", strings.Join(st.Variants, ", "))
			fmt.Fprintf(out, "fragments:  %d in %d files\n", st.Fragments, st.Files)
			fmt.Fprintf(out, "records:    %d\n", st.Records)
			fmt.Fprintf(out, "collisions: %d\n", st.Collisions)
			if len(st.Config) > 0 {
				fmt.Fprintf(out, "config:     %s\n", strings.Join(st.Config, ", "))
			}
			return nil
		}),
	}
}

func newCheckCommand(g *globalFlags) *cobra.Command {
	var changed bool
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Report fragment ids that appear more than once",
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			paths := args
			if changed {
				files, err := changedFiles(a)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					return nil
				}
				paths = append(paths, files...)
			}
			reports, err := a.Check(cmd.Context(), paths...)
			if err != nil {
				return err
			}
			if g.json {
				if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
					return err
				}
			} else {
				for _, c := range reports {
					fmt.Fprintln(cmd.OutOrStdout(), formatCollision(c))
				}
			}
			if len(reports) > 0 {
				return &exitCodeError{code: exitCollisions}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&changed, "changed", false, "Only report files changed in the git worktree")
	return cmd
}

// changedFiles returns the modified files of the enclosing repository
// that lie inside the workspace.
func changedFiles(a *app.Application) ([]string, error) {
	repoRoot, err := project.FindRoot(a.Root())
	if err != nil {
		return nil, err
	}
	files, err := project.ModifiedFiles(repoRoot)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		abs := filepath.Join(repoRoot, filepath.FromSlash(f))
		if _, err := a.Project().Ref(abs); err == nil {
			out = append(out, abs)
		}
	}
	return out, nil
}

func newInsertCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <file> <offset|line:col>",
		Short: "Insert an empty fragment with a fresh id",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			id, pos, err := a.Insert(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "file": args[0], "pos": pos})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted @%s at %s:%s\n", id, args[0], pos)
			return nil
		}),
	}
}

func newDeleteCommand(g *globalFlags) *cobra.Command {
	var forget bool
	cmd := &cobra.Command{
		Use:   "delete <file> <offset|line:col>",
		Short: "Remove the fragment at a location",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			id, err := a.Delete(cmd.Context(), args[0], args[1], forget)
			if err != nil {
				return err
			}
			msg := "deleted @" + id
			if forget {
				msg += " and its stored versions"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&forget, "forget", false, "Also delete the stored versions")
	return cmd
}

func newForgetCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id>...",
		Short: "Delete the stored versions of fragments",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			var errs []error
			for _, id := range args {
				if err := a.Forget(cmd.Context(), id); err != nil {
					errs = append(errs, fmt.Errorf("forget %s: %w", id, err))
				}
			}
			return errors.Join(errs...)
		}),
	}
}

func newShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the stored versions of a fragment",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			rec, ok, err := a.Show(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: @%s", engine.ErrNotFound, args[0])
			}
			return printJSON(cmd.OutOrStdout(), rec)
		}),
	}
}

func newImportLegacyCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import-legacy [dir]",
		Short: "Import <id>.<variant>.snippet files into the store",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			res, err := a.ImportLegacy(cmd.Context(), dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d snippets\n", res.Imported)
			for _, name := range res.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", name)
			}
			var errs []error
			for name, ferr := range res.Failed {
				errs = append(errs, fmt.Errorf("%s: %w", name, ferr))
			}
			return errors.Join(errs...)
		}),
	}
}

func newWatchCommand(g *globalFlags) *cobra.Command {
	var capture bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index current and report collisions as files change",
		Args:  cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, _ []string) error {
			out := cmd.OutOrStdout()
			return a.Watch(cmd.Context(), app.WatchOptions{
				Capture: capture,
				OnCollisions: func(_ index.FileRef, reports []app.CollisionReport) {
					for _, c := range reports {
						fmt.Fprintln(out, formatCollision(c))
					}
				},
			})
		}),
	}
	cmd.Flags().BoolVar(&capture, "capture", false, "Capture fragments whenever a file is saved")
	return cmd
}

func newRunCommand(g *globalFlags) *cobra.Command {
	var (
		allowRead  bool
		allowWrite bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Run a Lua script against the workspace, or list scripts",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, args []string) error {
			loader := plugin.NewLoader(a.Project().FS(), plugin.WithPaths(plugin.DefaultPaths(a.StorageDir())...))
			if len(args) == 0 {
				return listScripts(cmd, loader)
			}

			info, err := loader.Find(args[0])
			if err != nil {
				return err
			}
			src, err := loader.Read(info)
			if err != nil {
				return err
			}

			opts := []lua.StateOption{
				lua.WithOutput(cmd.OutOrStdout()),
				lua.WithExecutionTimeout(timeout),
			}
			if allowRead || allowWrite {
				opts = append(opts, lua.WithCapabilities(lua.CapabilityFileRead))
			}
			if allowWrite {
				opts = append(opts, lua.WithCapabilities(lua.CapabilityFileWrite))
			}
			return api.Run(cmd.Context(), a, info.Name+".lua", src, opts...)
		}),
	}
	cmd.Flags().BoolVar(&allowRead, "allow-read", false, "Let the script read workspace files")
	cmd.Flags().BoolVar(&allowWrite, "allow-write", false, "Let the script rewrite workspace files (implies --allow-read)")
	cmd.Flags().DurationVar(&timeout, "timeout", lua.DefaultExecutionTimeout, "Stop the script after this long (0 disables)")
	return cmd
}

func listScripts(cmd *cobra.Command, loader *plugin.Loader) error {
	scripts, err := loader.Discover()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range scripts {
		if s.Error != nil {
			fmt.Fprintf(out, "%s\t(%v)\n", s.Name, s.Error)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", s.Name, s.Path)
	}
	return nil
}
