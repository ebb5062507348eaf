package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gitpm/internal/orchestrator"
	"github.com/blackwell-systems/gitpm/internal/output"
	"github.com/blackwell-systems/gitpm/internal/upm"
)

var (
	updateFlagAllGit     bool
	updateFlagYes        bool
	updateFlagNoSnapshot bool
)

var updateCmd = &cobra.Command{
	Use:   "update [name|id]",
	Short: "Check installed packages for updates",
	Long: `Check installed packages for updates.

Registry packages are looked up in the registry index; when a newer version
that supports the configured engine exists, you are asked whether to install
it. Git packages are offered a reinstall from their source link, which picks
up new commits and refreshes their gitdependencies.

Without a name every installed package is checked in turn. With --all-git
every git package is reinstalled without asking; a snapshot of the current
commits is taken first so 'gitpm undo' can roll the update back.`,
	Example: `  gitpm update com.example.tools
  gitpm update --yes
  gitpm update --all-git`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateFlagAllGit, "all-git", false, "reinstall every git package from its source")
	updateCmd.Flags().BoolVar(&updateFlagYes, "yes", false, "accept every offered update")
	updateCmd.Flags().BoolVar(&updateFlagNoSnapshot, "no-snapshot", false, "skip the snapshot taken before --all-git")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if updateFlagAllGit && len(args) > 0 {
		return errors.New("--all-git cannot be combined with a package name")
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var prompter orchestrator.Prompter = newLinePrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	if updateFlagYes {
		prompter = orchestrator.AcceptPrompter{}
	}
	o := e.orchestrator(prompter, nil)

	o.RequestList(false)
	if err := e.drain(cmd.Context(), o); err != nil {
		return err
	}

	if updateFlagAllGit {
		return updateAllGit(cmd, e, o)
	}

	var targets []upm.Package
	if len(args) > 0 {
		pkg, ok := o.Find(args[0])
		if !ok {
			return fmt.Errorf("package %q not installed\n\nRun 'gitpm list' to see installed packages", args[0])
		}
		targets = append(targets, pkg)
	} else {
		targets = o.Installed()
	}

	out := cmd.OutOrStdout()
	if len(targets) == 0 {
		fmt.Fprintln(out, "No packages installed.")
		return nil
	}

	var failed []error
	for _, pkg := range targets {
		if err := o.CheckUpdates(pkg); err != nil {
			return err
		}
		if err := e.drain(cmd.Context(), o); err != nil {
			failed = append(failed, err)
		}
		if status := o.Status(); status != "" {
			fmt.Fprintf(out, "%s: %s\n", pkg.Name, status)
		}
	}

	return errors.Join(failed...)
}

func updateAllGit(cmd *cobra.Command, e *env, o *orchestrator.Orchestrator) error {
	out := cmd.OutOrStdout()

	names, err := gitPackageNames(e.store)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "No Git packages to update.")
		return nil
	}

	if !updateFlagNoSnapshot {
		id, err := e.snaps.CreateSnapshot(names, "update all git")
		if err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		fmt.Fprintf(out, "Snapshot created: ID %d\n", id)
	}

	n := o.EnqueueUpdateAllGit()
	fmt.Fprintf(out, "%s (%d package(s))\n", o.Status(), n)

	runErr := e.drain(cmd.Context(), o)
	fmt.Fprint(out, output.RenderPackageTable(o.Installed()))
	return runErr
}
