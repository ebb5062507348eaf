package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gitpm/internal/orchestrator"
	"github.com/blackwell-systems/gitpm/internal/output"
	"github.com/blackwell-systems/gitpm/internal/snapshots"
)

var (
	undoFlagList bool
	undoFlagYes  bool
)

var undoCmd = &cobra.Command{
	Use:   "undo [snapshot-id | latest]",
	Short: "Restore packages from a snapshot",
	Long: `Restore packages from a snapshot.

Snapshots are automatically created before package removal and before
'gitpm update --all-git'. Each one pins git packages to the commit they were
installed at and registry packages to their version. Undo reinstalls every
pinned reference, even ones already requested in this run.

Arguments:
  snapshot-id  The numeric ID of the snapshot to restore
  latest       Restore the most recent snapshot`,
	Example: `  gitpm undo --list           # List all snapshots
  gitpm undo latest           # Restore latest snapshot
  gitpm undo 42               # Restore snapshot ID 42
  gitpm undo 42 --yes         # Restore without confirmation`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

func init() {
	undoCmd.Flags().BoolVar(&undoFlagList, "list", false, "List available snapshots")
	undoCmd.Flags().BoolVar(&undoFlagYes, "yes", false, "Skip confirmation prompt")
}

func runUndo(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()

	if undoFlagList {
		return listSnapshots(cmd, e.snaps)
	}

	if len(args) == 0 {
		return fmt.Errorf("snapshot ID or 'latest' required\n\nUsage: gitpm undo [snapshot-id | latest]\n\nUse 'gitpm undo --list' to see available snapshots")
	}

	var snapshotID int64
	if strings.EqualFold(args[0], "latest") {
		id, err := e.snaps.Latest()
		if errors.Is(err, snapshots.ErrNoSnapshots) {
			return fmt.Errorf("no snapshots available\n\nSnapshots are automatically created before 'gitpm remove' and 'gitpm update --all-git'")
		}
		if err != nil {
			return err
		}
		snapshotID = id
		fmt.Fprintf(out, "Using latest snapshot: ID %d\n", snapshotID)
	} else {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid snapshot ID: %s (must be a number or 'latest')", args[0])
		}
		snapshotID = id
	}

	snapshot, err := e.store.GetSnapshot(snapshotID)
	if err != nil {
		return fmt.Errorf("snapshot %d not found\n\nRun 'gitpm undo --list' to see available snapshots", snapshotID)
	}

	refs, err := e.snaps.RestoreSnapshot(snapshotID)
	if err != nil {
		return fmt.Errorf("failed to read snapshot %d: %w", snapshotID, err)
	}

	fmt.Fprintf(out, "\nSnapshot Details:\n")
	fmt.Fprintf(out, "  ID: %d\n", snapshot.ID)
	fmt.Fprintf(out, "  Created: %s\n", snapshot.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Reason: %s\n", snapshot.Reason)
	fmt.Fprintf(out, "  Packages: %d\n", len(refs))
	fmt.Fprintln(out)

	if len(refs) == 0 {
		fmt.Fprintln(out, "Nothing to restore.")
		return nil
	}

	fmt.Fprintln(out, "Packages to restore:")
	for _, ref := range refs {
		fmt.Fprintf(out, "  - %s\n", ref)
	}
	fmt.Fprintln(out)

	if !undoFlagYes {
		p := newLinePrompter(cmd.InOrStdin(), out)
		if !p.confirm(fmt.Sprintf("Restore %d packages? [y/N]: ", len(refs))) {
			fmt.Fprintln(out, "Restoration cancelled.")
			return nil
		}
	}

	// Discovered gitdependencies must not replace the pinned commits.
	opts := e.options(nil, nil)
	opts.Pinned = refs
	o := orchestrator.New(e.client, opts)
	for _, ref := range refs {
		o.EnqueueAdd(ref, true)
	}
	if err := e.drain(cmd.Context(), o); err != nil {
		fmt.Fprintln(out, "\nSome packages may have been restored successfully.")
		return err
	}

	fmt.Fprintf(out, "\n✓ Restored %d packages from snapshot %d\n", len(refs), snapshotID)
	return nil
}

// listSnapshots displays all available snapshots.
func listSnapshots(cmd *cobra.Command, snapMgr *snapshots.Manager) error {
	out := cmd.OutOrStdout()

	snaps, err := snapMgr.ListSnapshots()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if len(snaps) == 0 {
		fmt.Fprintln(out, "No snapshots available.")
		fmt.Fprintln(out, "\nSnapshots are automatically created before removals and bulk git updates.")
		return nil
	}

	fmt.Fprintf(out, "\nAvailable snapshots:\n\n")
	fmt.Fprint(out, output.RenderSnapshotTable(snaps))
	fmt.Fprintf(out, "\nRestore with: gitpm undo <id>\n")

	return nil
}
