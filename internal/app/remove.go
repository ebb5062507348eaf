package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gitpm/internal/store"
	"github.com/blackwell-systems/gitpm/internal/upm"
)

var (
	removeFlagDryRun     bool
	removeFlagYes        bool
	removeFlagNoSnapshot bool
)

var removeCmd = &cobra.Command{
	Use:   "remove <name|id>...",
	Short: "Uninstall packages",
	Long: `Uninstall packages by name or package id.

Safety features:
  - Warns when another installed package lists the package as a gitdependency
  - Creates automatic snapshot (unless --no-snapshot)
  - Asks for confirmation when dependents exist (unless --yes)

Removing a local (file:) package only drops it from the index; its source
directory is left alone.`,
	Example: `  # Preview what would be removed
  gitpm remove com.example.tools --dry-run

  # Remove two packages without prompting
  gitpm remove com.example.tools com.example.net --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&removeFlagDryRun, "dry-run", false, "Show what would be removed without removing")
	removeCmd.Flags().BoolVar(&removeFlagYes, "yes", false, "Skip confirmation prompts")
	removeCmd.Flags().BoolVar(&removeFlagNoSnapshot, "no-snapshot", false, "Skip automatic snapshot creation (dangerous)")
}

func runRemove(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()

	var rows []*store.Package
	removing := make(map[string]bool)
	for _, arg := range args {
		row, err := e.store.GetPackage(arg)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("package %q not found\n\nRun 'gitpm list' to see installed packages", arg)
		}
		if err != nil {
			return err
		}
		if removing[row.Name] {
			continue
		}
		removing[row.Name] = true
		rows = append(rows, row)
	}

	warnings, err := dependentWarnings(e.store, rows, removing)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Packages to remove:\n")
	for _, row := range rows {
		fmt.Fprintf(out, "  - %s@%s (%s)\n", row.Name, row.Version, row.Origin)
	}
	if len(warnings) > 0 {
		fmt.Fprintln(out)
		for _, w := range warnings {
			fmt.Fprintf(out, "  ⚠ %s\n", w)
		}
	}
	if removeFlagNoSnapshot {
		fmt.Fprintf(out, "\n  ⚠  Snapshot: SKIPPED (--no-snapshot), removal cannot be undone!\n")
	}
	fmt.Fprintln(out)

	if removeFlagDryRun {
		fmt.Fprintln(out, "Dry-run mode: no packages will be removed.")
		return nil
	}

	if len(warnings) > 0 && !removeFlagYes {
		p := newLinePrompter(cmd.InOrStdin(), out)
		if !p.confirm(fmt.Sprintf("Remove %d package(s) anyway? [y/N]: ", len(rows))) {
			fmt.Fprintln(out, "Removal cancelled.")
			return nil
		}
	}

	if !removeFlagNoSnapshot {
		names := make([]string, len(rows))
		for i, row := range rows {
			names[i] = row.Name
		}
		id, err := e.snaps.CreateSnapshot(names, "remove "+strings.Join(names, ", "))
		if err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		fmt.Fprintf(out, "Snapshot created: ID %d\n", id)
	}

	o := e.orchestrator(nil, nil)
	for _, row := range rows {
		o.EnqueueRemove(row.Name)
	}
	if err := e.drain(cmd.Context(), o); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n✓ Removed %d package(s)\n", len(rows))
	if !removeFlagNoSnapshot {
		fmt.Fprintln(out, "  Undo with: gitpm undo latest")
	}
	return nil
}

// dependentWarnings lists installed packages, other than the ones being
// removed, whose gitdependencies point at the source of a removed git package.
func dependentWarnings(st *store.Store, rows []*store.Package, removing map[string]bool) ([]string, error) {
	var warnings []string
	for _, row := range rows {
		if upm.ParseOrigin(row.Origin) != upm.OriginGit || row.SourceRef == "" {
			continue
		}
		dependents, err := st.GetDependents(row.SourceRef)
		if err != nil {
			return nil, fmt.Errorf("failed to check dependents of %s: %w", row.Name, err)
		}

		var others []string
		for _, d := range dependents {
			if !removing[d] {
				others = append(others, d)
			}
		}
		if len(others) > 0 {
			warnings = append(warnings, fmt.Sprintf("%s is a gitdependency of: %s", row.Name, strings.Join(others, ", ")))
		}
	}
	return warnings, nil
}
