package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/fragments/internal/app"
	"github.com/dshills/fragments/internal/project"
)

const (
	hookStart = "# >>> fragments check hook >>>"
	hookEnd   = "# <<< fragments check hook <<<"
)

func newHookCommand(g *globalFlags) *cobra.Command {
	hook := &cobra.Command{
		Use:   "hook",
		Short: "Manage the git pre-commit hook",
	}
	hook.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install a pre-commit hook that runs fragments check",
		Args:  cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app.Application, _ []string) error {
			path, err := installHook(a.Root())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed pre-commit hook at %s\n", path)
			return nil
		}),
	})
	return hook
}

// installHook adds or refreshes the managed block in the pre-commit hook
// of the repository enclosing root and returns the hook path.
func installHook(root string) (string, error) {
	gitDir, err := project.GitDir(root)
	if err != nil {
		return "", err
	}

	hookPath := filepath.Join(gitDir, "hooks", "pre-commit")
	if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create hook directory: %w", err)
	}

	existing := ""
	if data, err := os.ReadFile(hookPath); err == nil {
		existing = string(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to read existing hook: %w", err)
	}

	updated := upsertHook(existing, root)
	if err := os.WriteFile(hookPath, []byte(updated), 0o755); err != nil {
		return "", fmt.Errorf("failed to write hook: %w", err)
	}
	return hookPath, nil
}

// upsertHook replaces the managed block of an existing hook script, or
// appends one.
func upsertHook(existing, root string) string {
	block := hookBlock(root)

	if existing == "" {
		return "#!/bin/sh\n\n" + block + "\n"
	}

	start := strings.Index(existing, hookStart)
	end := strings.Index(existing, hookEnd)
	if start >= 0 && end >= start {
		end += len(hookEnd)
		return ensureTrailingNewline(existing[:start] + block + existing[end:])
	}

	base := ensureTrailingNewline(existing)
	if !strings.HasPrefix(base, "#!") {
		base = "#!/bin/sh\n" + base
	}
	return base + "\n" + block + "\n"
}

func hookBlock(root string) string {
	return fmt.Sprintf(
		"%s\nif command -v fragments >/dev/null 2>&1; then\n  fragments -w %q check --changed || exit 1\nfi\n%s",
		hookStart,
		root,
		hookEnd,
	)
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
